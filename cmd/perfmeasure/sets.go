// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// eventSets maps a set name to the event selectors it contains, e.g.
//
//	cache:
//	  - cache-references
//	  - cache-misses
//	  - L1-dcache-load-misses
type eventSets map[string][]string

func loadEventSets(path string) (eventSets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sets eventSets
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("error parsing event sets %s: %w", path, err)
	}
	return sets, nil
}
