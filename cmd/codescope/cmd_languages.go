// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codescope/internal/ignore"
	"github.com/AleutianAI/codescope/internal/lang"
)

func runLanguages(cmd *cobra.Command, args []string) {
	repo := repoAbs()

	detector := lang.NewDetector(lang.NewRegistry(), ignore.NewEvaluator(repo), cfg.MinLanguagePercent)
	detection, err := detector.Detect(repo)
	if err != nil {
		fatalf("detect languages: %v", err)
	}

	if len(detection.Languages) == 0 {
		fmt.Println("no supported languages found")
		return
	}
	for _, l := range detection.Languages {
		if l.BelowThreshold && !allLanguages {
			continue
		}
		marker := ""
		if l.BelowThreshold {
			marker = " (below threshold)"
		}
		fmt.Printf("%s%s\n", l.String(), marker)
	}
	if detection.GoModulePath != "" {
		fmt.Printf("go module: %s\n", detection.GoModulePath)
	}
}
