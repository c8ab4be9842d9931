package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnifiedDiff_empty(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   \n\t\n  "} {
		got, err := ParseUnifiedDiff(in)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestParseUnifiedDiff_singleFileSingleHunk(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/foo.go b/foo.go
index abc123..def456 100644
--- a/foo.go
+++ b/foo.go
@@ -1,3 +1,4 @@
 package main
+
 func main() {
-	println("hi")
+	println("hello")
`
	got, err := ParseUnifiedDiff(diff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	f := got[0]
	assert.Equal(t, "foo.go", f.Path)
	assert.Equal(t, Modified, f.Kind)
	assert.Equal(t, 2, f.Added)
	assert.Equal(t, 1, f.Removed)
	require.Len(t, f.Hunks, 1)
	assert.True(t, strings.HasPrefix(f.Hunks[0], "@@ -1,3 +1,4 @@"))
	assert.Contains(t, f.Hunks[0], `+	println("hello")`)
}

func TestParseUnifiedDiff_multipleFilesAndHunks(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/a.go b/a.go
index 1..2 100644
--- a/a.go
+++ b/a.go
@@ -1,2 +1,2 @@
-x
+y
@@ -10,2 +10,3 @@
 z
+w
diff --git a/b.go b/b.go
index 3..4 100644
--- a/b.go
+++ b/b.go
@@ -1 +1 @@
-old
+new
`
	got, err := ParseUnifiedDiff(diff)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.go", got[0].Path)
	assert.Len(t, got[0].Hunks, 2)
	assert.Equal(t, 2, got[0].Added)
	assert.Equal(t, 1, got[0].Removed)
	assert.Equal(t, "b.go", got[1].Path)
	assert.Len(t, got[1].Hunks, 1)
}

func TestParseUnifiedDiff_kinds(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/new.txt b/new.txt
new file mode 100644
index 0000000..1111111
--- /dev/null
+++ b/new.txt
@@ -0,0 +1 @@
+hello
diff --git a/gone.txt b/gone.txt
deleted file mode 100644
index 2222222..0000000
--- a/gone.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
diff --git a/old name.go b/new name.go
similarity index 90%
rename from old name.go
rename to new name.go
index 3..4 100644
--- a/old name.go
+++ b/new name.go
@@ -1 +1 @@
-a
+b
diff --git a/logo.png b/logo.png
new file mode 100644
index 0000000..5555555
Binary files /dev/null and b/logo.png differ
`
	got, err := ParseUnifiedDiff(diff)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "new.txt", got[0].Path)
	assert.Equal(t, Added, got[0].Kind)
	assert.Equal(t, 1, got[0].Added)

	assert.Equal(t, "gone.txt", got[1].Path)
	assert.Equal(t, Deleted, got[1].Kind)
	assert.Equal(t, 1, got[1].Removed)

	assert.Equal(t, "new name.go", got[2].Path)
	assert.Equal(t, "old name.go", got[2].OldPath)
	assert.Equal(t, Renamed, got[2].Kind)

	assert.Equal(t, "logo.png", got[3].Path)
	assert.True(t, got[3].Binary)
	assert.Equal(t, Added, got[3].Kind)
	assert.Empty(t, got[3].Hunks)
}

func TestParseUnifiedDiff_pureRename(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/x.go b/y.go
similarity index 100%
rename from x.go
rename to y.go
`
	got, err := ParseUnifiedDiff(diff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "y.go", got[0].Path)
	assert.Equal(t, "x.go", got[0].OldPath)
	assert.Empty(t, got[0].Hunks)
}

func TestParseUnifiedDiff_hunkLineLooksLikeHeader(t *testing.T) {
	t.Parallel()
	diff := `diff --git a/notes.md b/notes.md
index 1..2 100644
--- a/notes.md
+++ b/notes.md
@@ -1,2 +1,2 @@
--- a removed line starting with dashes
+++ an added line starting with pluses
\ No newline at end of file
`
	got, err := ParseUnifiedDiff(diff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "notes.md", got[0].Path)
	assert.Equal(t, 1, got[0].Added)
	assert.Equal(t, 1, got[0].Removed)
	assert.Contains(t, got[0].Hunks[0], `\ No newline at end of file`)
}

func TestChangeKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "renamed", Renamed.String())
}
