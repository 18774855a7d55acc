package acceptance

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildSkillArchive writes a zip holding two skill bundles and returns its
// path.
func buildSkillArchive(t *testing.T) string {
	t.Helper()

	archivePath := filepath.Join(t.TempDir(), "skills.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	files := []struct {
		name    string
		content string
	}{
		{"web-scraping/SKILL.md", "---\nname: Web Scraping\ndescription: Fetch pages and extract structured data\n---\n\n# Web Scraping\n\nUse the bundled fetch script.\n"},
		{"web-scraping/scripts/fetch.py", "print('fetch')\n"},
		{"data-analysis/SKILL.md", "---\nname: Data Analysis\ndescription: Explore tabular data and summarize findings\n---\n\n# Data Analysis\n"},
	}
	for _, file := range files {
		entry, err := w.Create(file.name)
		if err != nil {
			t.Fatalf("Failed to add %s: %v", file.name, err)
		}
		if _, err := entry.Write([]byte(file.content)); err != nil {
			t.Fatalf("Failed to write %s: %v", file.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finish archive: %v", err)
	}
	return archivePath
}

func TestImportArchive(t *testing.T) {
	basePath := t.TempDir()
	archivePath := buildSkillArchive(t)

	output, err := runSkillet(t, basePath, "import", archivePath)
	if err != nil {
		t.Fatalf("Failed to import archive: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Imported 2 skill bundle(s)") {
		t.Errorf("Import should report both bundles. Got: %s", output)
	}

	// Destination folders are derived from the descriptor names, and
	// supporting files come along
	for _, path := range []string{
		filepath.Join(basePath, "skills", "Web-Scraping", "SKILL.md"),
		filepath.Join(basePath, "skills", "Web-Scraping", "scripts", "fetch.py"),
		filepath.Join(basePath, "skills", "Data-Analysis", "SKILL.md"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s after import: %v", path, err)
		}
	}

	output, err = runSkillet(t, basePath, "list", "--json")
	if err != nil {
		t.Fatalf("Failed to list after import: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Web Scraping") || !strings.Contains(output, "Data Analysis") {
		t.Errorf("Imported skills should be listed. Got: %s", output)
	}
}

func TestImportConflicts(t *testing.T) {
	basePath := t.TempDir()
	archivePath := buildSkillArchive(t)

	output, err := runSkillet(t, basePath, "import", archivePath)
	if err != nil {
		t.Fatalf("Failed to import archive: %v\n%s", err, output)
	}

	// Re-importing collides on both names; with stdin closed the prompt
	// reads EOF and nothing is replaced
	output, err = runSkillet(t, basePath, "import", archivePath)
	if err != nil {
		t.Fatalf("Conflicting import should still exit cleanly: %v\n%s", err, output)
	}
	for _, want := range []string{"already exists", "No bundles were imported"} {
		if !strings.Contains(output, want) {
			t.Errorf("Conflict output should contain %q. Got: %s", want, output)
		}
	}

	// --yes replaces every conflicting bundle
	output, err = runSkillet(t, basePath, "import", archivePath, "--yes")
	if err != nil {
		t.Fatalf("Failed to import with --yes: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Imported 2 skill bundle(s)") {
		t.Errorf("Import with --yes should replace both bundles. Got: %s", output)
	}

	// --overwrite names the folders that may be replaced; the rest are
	// skipped with a warning
	output, err = runSkillet(t, basePath, "import", archivePath, "--overwrite", "Web-Scraping")
	if err != nil {
		t.Fatalf("Failed to import with --overwrite: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Skipped 'Data Analysis'") {
		t.Errorf("Unconfirmed conflict should be skipped. Got: %s", output)
	}
	if strings.Contains(output, "Skipped 'Web Scraping'") {
		t.Errorf("Confirmed folder should not be reported as skipped. Got: %s", output)
	}
	if !strings.Contains(output, "Imported 1 skill bundle(s)") {
		t.Errorf("Only the confirmed bundle should import. Got: %s", output)
	}
}

func TestImportRejectsUnsupportedArchive(t *testing.T) {
	basePath := t.TempDir()

	archivePath := filepath.Join(t.TempDir(), "skills.rar")
	if err := os.WriteFile(archivePath, []byte("not an archive"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	output, err := runSkillet(t, basePath, "import", archivePath)
	if err == nil {
		t.Fatalf("Unsupported archive should fail, got output: %s", output)
	}
	if !strings.Contains(output, "unsupported archive type") {
		t.Errorf("Error output should name the archive problem. Got: %s", output)
	}
}
