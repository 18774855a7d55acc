package acceptance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestSkillLifecycle walks a bundle through its full life: create, list,
// disable, enable, scope, show, remove, and the audit trail at the end.
func TestSkillLifecycle(t *testing.T) {
	basePath := t.TempDir()

	bodyFile := filepath.Join(t.TempDir(), "body.md")
	body := "# Markdown Cleanup\n\nRun the formatter before committing.\n"
	if err := os.WriteFile(bodyFile, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write body file: %v", err)
	}

	// Create a bundle; the folder name is derived from the skill name
	output, err := runSkillet(t, basePath, "create",
		"--name", "Markdown Cleanup",
		"--description", "Normalize heading levels and fix list indentation",
		"--body-file", bodyFile)
	if err != nil {
		t.Fatalf("Failed to create skill: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Wrote skill 'Markdown Cleanup' to Markdown-Cleanup") {
		t.Errorf("Create output should name the skill and folder. Got: %s", output)
	}

	descriptorPath := filepath.Join(basePath, "skills", "Markdown-Cleanup", "SKILL.md")
	content, err := os.ReadFile(descriptorPath)
	if err != nil {
		t.Fatalf("Descriptor file was not created: %v", err)
	}
	if !strings.Contains(string(content), "name: Markdown Cleanup") {
		t.Errorf("Descriptor should carry the skill name in its front matter. Got: %s", content)
	}
	if !strings.Contains(string(content), "Run the formatter before committing.") {
		t.Errorf("Descriptor should carry the body. Got: %s", content)
	}

	// New skills are enabled and globally scoped
	output, err = runSkillet(t, basePath, "list", "--json")
	if err != nil {
		t.Fatalf("Failed to list skills: %v\n%s", err, output)
	}
	if !strings.Contains(output, `"Markdown Cleanup"`) || !strings.Contains(output, `"Markdown-Cleanup"`) {
		t.Errorf("List should include the new skill. Got: %s", output)
	}
	if !strings.Contains(output, `"isGlobal": true`) {
		t.Errorf("New skill should be globally scoped. Got: %s", output)
	}

	// Disabled skills drop out of the default listing
	output, err = runSkillet(t, basePath, "disable", "Markdown Cleanup")
	if err != nil {
		t.Fatalf("Failed to disable skill: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Disabled skill 'Markdown Cleanup'") {
		t.Errorf("Disable output should confirm the skill. Got: %s", output)
	}

	output, err = runSkillet(t, basePath, "list", "--json")
	if err != nil {
		t.Fatalf("Failed to list skills: %v\n%s", err, output)
	}
	if output != "[]" {
		t.Errorf("Default listing should be empty after disable. Got: %s", output)
	}

	output, err = runSkillet(t, basePath, "list", "--all", "--json")
	if err != nil {
		t.Fatalf("Failed to list all skills: %v\n%s", err, output)
	}
	if !strings.Contains(output, `"Markdown Cleanup"`) || !strings.Contains(output, `"enabled": false`) {
		t.Errorf("--all listing should include the disabled skill. Got: %s", output)
	}

	output, err = runSkillet(t, basePath, "enable", "Markdown Cleanup")
	if err != nil {
		t.Fatalf("Failed to enable skill: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Enabled skill 'Markdown Cleanup'") {
		t.Errorf("Enable output should confirm the skill. Got: %s", output)
	}

	// Restrict the skill to two agents
	output, err = runSkillet(t, basePath, "scope", "Markdown Cleanup", "--agents", "researcher,writer")
	if err != nil {
		t.Fatalf("Failed to scope skill: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Scope of 'Markdown Cleanup' is now researcher,writer") {
		t.Errorf("Scope output should name the agents. Got: %s", output)
	}

	output, err = runSkillet(t, basePath, "show", "Markdown Cleanup")
	if err != nil {
		t.Fatalf("Failed to show skill: %v\n%s", err, output)
	}
	for _, want := range []string{"Markdown-Cleanup", "researcher,writer", "Run the formatter before committing."} {
		if !strings.Contains(output, want) {
			t.Errorf("Show output should contain %q. Got: %s", want, output)
		}
	}

	// Removal is keyed by folder name and deletes the directory
	output, err = runSkillet(t, basePath, "remove", "Markdown-Cleanup")
	if err != nil {
		t.Fatalf("Failed to remove skill: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Removed skill bundle 'Markdown-Cleanup'") {
		t.Errorf("Remove output should confirm the folder. Got: %s", output)
	}
	if _, err := os.Stat(filepath.Dir(descriptorPath)); !os.IsNotExist(err) {
		t.Errorf("Bundle directory should be gone after remove, stat err: %v", err)
	}

	output, err = runSkillet(t, basePath, "list", "--json")
	if err != nil {
		t.Fatalf("Failed to list skills: %v\n%s", err, output)
	}
	if output != "[]" {
		t.Errorf("Listing should be empty after remove. Got: %s", output)
	}

	// Every mutation above left an audit event behind
	output, err = runSkillet(t, basePath, "history")
	if err != nil {
		t.Fatalf("Failed to show history: %v\n%s", err, output)
	}
	for _, want := range []string{"write", "toggle", "update", "delete", "Markdown Cleanup"} {
		if !strings.Contains(output, want) {
			t.Errorf("History should record %q. Got: %s", want, output)
		}
	}
}

// TestListFilter checks the glob filter against both display and folder names.
func TestListFilter(t *testing.T) {
	basePath := t.TempDir()

	skills := []struct {
		name        string
		description string
	}{
		{"Data Analysis", "Explore tabular data and summarize findings"},
		{"Data Export", "Write query results to CSV and Parquet"},
		{"Web Research", "Gather information from online sources"},
	}
	for _, s := range skills {
		output, err := runSkillet(t, basePath, "create", "--name", s.name, "--description", s.description)
		if err != nil {
			t.Fatalf("Failed to create %q: %v\n%s", s.name, err, output)
		}
	}

	output, err := runSkillet(t, basePath, "list", "--filter", "Data*", "--json")
	if err != nil {
		t.Fatalf("Failed to list with filter: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Data Analysis") || !strings.Contains(output, "Data Export") {
		t.Errorf("Filter should match both Data skills. Got: %s", output)
	}
	if strings.Contains(output, "Web Research") {
		t.Errorf("Filter should exclude Web Research. Got: %s", output)
	}

	// Folder names match too
	output, err = runSkillet(t, basePath, "list", "--filter", "Web-*", "--json")
	if err != nil {
		t.Fatalf("Failed to list with folder filter: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Web Research") {
		t.Errorf("Filter should match the folder name. Got: %s", output)
	}

	// A malformed pattern is reported, not silently ignored
	output, err = runSkillet(t, basePath, "list", "--filter", "[unclosed")
	if err == nil {
		t.Fatalf("Malformed filter should fail, got output: %s", output)
	}
	if !strings.Contains(output, "Invalid filter pattern") {
		t.Errorf("Error output should name the filter problem. Got: %s", output)
	}
}

func TestUnknownSkillErrors(t *testing.T) {
	basePath := t.TempDir()

	output, err := runSkillet(t, basePath, "show", "No Such Skill")
	if err == nil {
		t.Fatalf("Show of unknown skill should fail, got output: %s", output)
	}
	if !strings.Contains(output, "not found") {
		t.Errorf("Error output should say the skill was not found. Got: %s", output)
	}

	output, err = runSkillet(t, basePath, "enable", "No Such Skill")
	if err == nil {
		t.Fatalf("Enable of unknown skill should fail, got output: %s", output)
	}
	if !strings.Contains(output, "not found") {
		t.Errorf("Error output should say the skill was not found. Got: %s", output)
	}
}
