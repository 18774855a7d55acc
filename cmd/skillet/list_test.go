package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

func sampleSkills() []skilltypes.Skill {
	return []skilltypes.Skill{
		{
			Name:        "PDF Processing",
			DirName:     "pdf-processing",
			Description: "Work with PDF files",
			Enabled:     true,
			Scope:       skilltypes.GlobalScope(),
			IsExample:   true,
		},
		{
			Name:        "Data Analysis",
			DirName:     "data-analysis",
			Description: "Analyze CSV data",
			Enabled:     false,
			Scope:       skilltypes.Scope{SelectedAgents: []string{"researcher"}},
		},
		{
			Name:        "Web Scraping",
			DirName:     "web-scraping",
			Description: strings.Repeat("scrape ", 20),
			Enabled:     true,
			Scope:       skilltypes.GlobalScope(),
		},
	}
}

func TestFilterSkills(t *testing.T) {
	tests := []struct {
		name     string
		config   *ListConfig
		expected []string
	}{
		{
			name:     "enabled only by default",
			config:   &ListConfig{},
			expected: []string{"PDF Processing", "Web Scraping"},
		},
		{
			name:     "all includes disabled",
			config:   &ListConfig{All: true},
			expected: []string{"PDF Processing", "Data Analysis", "Web Scraping"},
		},
		{
			name:     "filter matches display name",
			config:   &ListConfig{All: true, Filter: "Data*"},
			expected: []string{"Data Analysis"},
		},
		{
			name:     "filter matches folder name",
			config:   &ListConfig{Filter: "pdf-*"},
			expected: []string{"PDF Processing"},
		},
		{
			name:     "filter still skips disabled skills",
			config:   &ListConfig{Filter: "*a*"},
			expected: []string{"Web Scraping"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, err := filterSkills(sampleSkills(), tt.config)
			require.NoError(t, err)

			names := make([]string, 0, len(filtered))
			for _, s := range filtered {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestFilterSkillsInvalidPattern(t *testing.T) {
	_, err := filterSkills(sampleSkills(), &ListConfig{Filter: "[unclosed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")
}

func TestRenderSkillTable(t *testing.T) {
	var buf bytes.Buffer
	renderSkillTable(&buf, sampleSkills())

	output := buf.String()
	assert.Contains(t, output, "NAME")
	assert.Contains(t, output, "PDF Processing (example)")
	assert.Contains(t, output, "data-analysis")
	assert.Contains(t, output, "...")
	assert.NotContains(t, output, strings.Repeat("scrape ", 20))
}

func TestFormatScope(t *testing.T) {
	assert.Equal(t, "global", formatScope(skilltypes.GlobalScope()))
	assert.Equal(t, "none", formatScope(skilltypes.Scope{}))
	assert.Equal(t, "researcher,writer", formatScope(skilltypes.Scope{SelectedAgents: []string{"researcher", "writer"}}))
}
