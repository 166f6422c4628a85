package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
	"github.com/manishrjain/keys"
	"github.com/pkg/errors"
)

func checkf(err error, format string, args ...interface{}) {
	if err != nil {
		log.Printf(format, args...)
		log.Println()
		log.Fatalf("%+v", errors.WithStack(err))
	}
}

func assertf(ok bool, format string, args ...interface{}) {
	if !ok {
		log.Printf(format, args...)
		log.Println()
		log.Fatalf("%+v", errors.Errorf("Should be true, but is false"))
	}
}

var errc = color.New(color.BgRed, color.FgWhite).PrintfFunc()

func oerr(msg string) {
	errc("\tERROR: " + msg + " ")
	fmt.Println()
	usage()
}

func clear() {
	cmd := exec.Command("clear")
	cmd.Stdout = os.Stdout
	cmd.Run()
	fmt.Println()
}

func singleCharMode() {
	// disable input buffering
	exec.Command("stty", "-F", "/dev/tty", "cbreak", "min", "1").Run()
	// do not display entered characters on the screen
	exec.Command("stty", "-F", "/dev/tty", "-echo").Run()
}

func saneMode() {
	exec.Command("stty", "-F", "/dev/tty", "sane").Run()
}

var stdin = bufio.NewReader(os.Stdin)

func readLine(prompt string) string {
	fmt.Print(prompt)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

// confirmKeyword gates destructive operations behind a typed keyword, e.g.
// DELETE. A y/n prompt is too easy to hit by reflex.
func confirmKeyword(prompt, keyword string) bool {
	return readLine(fmt.Sprintf("%s Type '%s' to confirm: ", prompt, keyword)) == keyword
}

func confirmYN(prompt string) bool {
	answer := strings.ToLower(readLine(prompt + " (y/n): "))
	return answer == "y" || answer == "yes"
}

const descLength = 40

// printRecord renders one ledger row in the colored column style used
// throughout the tool.
func printRecord(r Record) {
	if r.Reviewed {
		color.New(color.BgGreen, color.FgBlack).Printf(" R ")
	} else {
		color.New(color.BgRed, color.FgWhite).Printf(" N ")
	}
	color.New(color.BgYellow, color.FgBlack).Printf(" %10s ", r.Date.Format(stamp))
	color.New(color.BgBlue, color.FgWhite).Printf(" %-20s ", trimTo(r.Account, 20))
	color.New(color.BgWhite, color.FgBlack).Printf(" %-40s", trimTo(r.Description, descLength))
	color.New(color.BgRed, color.FgWhite).Printf(" %9.2f ", r.Amount)
	if len(r.Category) > 0 {
		color.New(color.BgGreen, color.FgBlack).Printf(" %-20s ", trimTo(r.Category, 20))
	}
	fmt.Println()
}

func trimTo(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// pickCategory shows a single-key shortcut menu over the known categories
// and returns the chosen one, or "" if the user backs out.
func pickCategory(categories []string) string {
	var ks keys.Shortcuts
	ks.BestEffortAssign('q', ".quit", "default")
	for _, cat := range categories {
		ks.AutoAssign(cat, "default")
	}

	singleCharMode()
	defer saneMode()

	ks.Print("default", false)
	r := make([]byte, 1)
	os.Stdin.Read(r)
	if opt, has := ks.MapsTo(rune(r[0]), "default"); has {
		if opt == ".quit" {
			return ""
		}
		return opt
	}
	return ""
}
