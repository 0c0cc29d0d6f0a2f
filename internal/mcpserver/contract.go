package mcpserver

// PatchFormatURI is the resource URI serving PatchFormatContract.
const PatchFormatURI = "vault://patch-format"

// PatchFormatContract describes the unified diff dialect accepted by the
// patch_file tool.
const PatchFormatContract = `# Patch Format

The patch_file tool applies a **unified diff** to exactly one file.

## Structure

` + "```" + `diff
--- a/notes/todo.md
+++ b/notes/todo.md
@@ -2,3 +2,3 @@
 context line
-line to remove
+line to add
 context line
` + "```" + `

## Rules

1. File headers (` + "`" + `---` + "`" + ` / ` + "`" + `+++` + "`" + `) are optional. When present they must name the
   file being patched; a diff touching several files is rejected.
2. Each hunk starts with ` + "`" + `@@ -old_start,old_count +new_start,new_count @@` + "`" + `.
   A missing count means 1. Line numbers are 1-based.
3. Hunk lines start with a space (context), ` + "`" + `-` + "`" + ` (remove) or ` + "`" + `+` + "`" + ` (add).
4. Context and removed lines must match the file **exactly**: same
   whitespace, same trailing spaces, same line endings. There is no fuzzy
   matching and no offset search; read the file first and copy lines verbatim.
5. Hunks must be in file order and must not overlap.
6. ` + "`" + `\ No newline at end of file` + "`" + ` after a line means that line has no
   trailing newline.
7. Either every hunk applies or nothing is written. On failure the error names
   the hunk, the file line, the expected text and the text actually found.
8. Pass ` + "`" + `if_match` + "`" + ` with the checksum returned by read_file to refuse the
   patch if the file changed since it was read.

## Example

File ` + "`" + `n.md` + "`" + `:

` + "```" + `
line1
line2
line3
` + "```" + `

Patch:

` + "```" + `diff
@@ -2,1 +2,1 @@
-line2
+lineX
` + "```" + `

Result: ` + "`" + `line1\nlineX\nline3\n` + "`" + `.
`
