//go:build ignore

// build.go - Disposal Watch build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, scanner, web, test, clean

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	version       = "1.16.0"
	module        = "github.com/M1229012/Stock-V116-sub000"
	versionSymbol = module + "/internal/infrastructure.ServiceVersion"
)

var (
	distDir = "dist"

	// key = directory under cmd/, value = output binary name
	executables = map[string]string{
		"scanner": "disposal-scan",
		"web":     "disposal-web",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if runtime.GOOS == "windows" {
		colorReset, colorRed, colorGreen, colorYellow, colorBlue = "", "", "", "", ""
	}

	fmt.Printf("%sDisposal Watch build %s%s\n", colorBlue, version, colorReset)
	start := time.Now()

	switch *target {
	case "all":
		runTests(*verbose)
		for name := range executables {
			buildExecutable(name, *verbose)
		}
	case "scanner", "web":
		buildExecutable(*target, *verbose)
	case "test":
		runTests(*verbose)
	case "clean":
		clean()
	default:
		printError(fmt.Sprintf("Unknown target: %s", *target))
		fmt.Println("Targets: all, scanner, web, test, clean")
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Done in %s", time.Since(start).Round(time.Millisecond)))
}

func printInfo(msg string)    { fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg) }
func printSuccess(msg string) { fmt.Printf("%s[OK]%s %s\n", colorGreen, colorReset, msg) }
func printError(msg string)   { fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg) }
func printWarning(msg string) { fmt.Printf("%s[WARN]%s %s\n", colorYellow, colorReset, msg) }

func buildExecutable(name string, verbose bool) {
	binary, ok := executables[name]
	if !ok {
		printError(fmt.Sprintf("Unknown executable: %s", name))
		os.Exit(1)
	}
	if runtime.GOOS == "windows" {
		binary += ".exe"
	}
	printInfo(fmt.Sprintf("Building %s...", name))

	output := filepath.Join(distDir, binary)
	ldflags := fmt.Sprintf("-s -w -X %s=%s", versionSymbol, version)
	args := []string{"build"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "-ldflags", ldflags, "-o", output, "./cmd/"+name)

	if verbose {
		fmt.Printf("go %s\n", strings.Join(args, " "))
	}
	if err := run(verbose, "go", args...); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(output); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", binary, float64(info.Size())/1024/1024))
	}
}

func runTests(verbose bool) {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	if err := run(true, "go", args...); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

func clean() {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil {
		printWarning(fmt.Sprintf("Failed to remove %s: %v", distDir, err))
		return
	}
	printSuccess("Cleaned " + distDir)
}

func run(stream bool, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if stream {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}
