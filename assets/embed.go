// Package assets embeds the default riddle and scramble-word banks.
package assets

import (
	"bufio"
	"embed"
	"strings"
)

//go:embed words.txt riddles.txt
var FS embed.FS

// readLines returns the non-empty, non-comment lines of an embedded file.
func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// WordsList returns the raw scramble word lines.
func WordsList() ([]string, error) {
	return readLines("words.txt")
}

// RiddlesList returns the raw "question|answer" riddle lines.
func RiddlesList() ([]string, error) {
	return readLines("riddles.txt")
}
