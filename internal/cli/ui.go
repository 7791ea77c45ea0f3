package cli

import "fmt"

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	fmt.Println(iconSuccess + " " + fmt.Sprintf(format, args...))
}

// printError prints an error message.
func printError(format string, args ...any) {
	fmt.Println(iconError + " " + fmt.Sprintf(format, args...))
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	fmt.Println(iconWarning + " " + fmt.Sprintf(format, args...))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	fmt.Println(iconInfo + " " + fmt.Sprintf(format, args...))
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	fmt.Println("  " + fmt.Sprintf(format, args...))
}

// =============================================================================
// File Output
// =============================================================================

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + iconArrow + " " + path)
}

// =============================================================================
// Key-Value Output
// =============================================================================

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	fmt.Printf("%-14s %s\n", key, value)
}

// =============================================================================
// Stats Display
// =============================================================================

// printStats prints package/finding counts on a single line.
func printStats(packageCount, findingCount int, cached bool) {
	status := "fresh"
	if cached {
		status = "cached"
	}
	fmt.Printf("  %d packages · %d findings · %s\n", packageCount, findingCount, status)
}

// =============================================================================
// Commands & Next Steps
// =============================================================================

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(description + ": " + cmd)
}

// =============================================================================
// Utilities
// =============================================================================

// printInline prints a message without a trailing newline.
func printInline(format string, args ...any) {
	fmt.Print(fmt.Sprintf(format, args...))
}

// printNewline prints an empty line.
func printNewline() {
	fmt.Println()
}
