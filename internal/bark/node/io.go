package node

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/barktree/bark/internal/bark/values"
)

// stdin is the process-wide line reader shared by every synchronous
// standard-input node, so AskForInput/ReadStdio/Repl don't each buffer
// their own partially-consumed chunk of the same stream.
var stdin = bufio.NewReader(os.Stdin)

// PrintLine writes the resolution of Value to standard output, followed by
// a newline.
type PrintLine struct {
	Value values.TextValue
}

func (n *PrintLine) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	text, err := rc.Controller.GetText(n.Value)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	fmt.Fprintln(os.Stdout, text)
	rc.Exit(Complete)
	return Complete
}

func (n *PrintLine) Reset() {}

// AskForInput prints Prompt, reads one line of standard input, and stores
// it (trailing newline removed) in Target.
type AskForInput struct {
	Prompt values.TextValue
	Target values.VariableID
}

func (n *AskForInput) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	prompt, err := rc.Controller.GetText(n.Prompt)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	if prompt != "" {
		fmt.Fprint(os.Stdout, prompt)
	}
	line, err := readLine(stdin)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetText(n.Target, line)
	rc.Exit(Complete)
	return Complete
}

func (n *AskForInput) Reset() {}

// ReadStdio reads either one line or the entire remaining stream from
// standard input into Target, depending on SingleLine.
type ReadStdio struct {
	SingleLine bool
	Target     values.VariableID
}

func (n *ReadStdio) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	var text string
	var err error
	if n.SingleLine {
		text, err = readLine(stdin)
	} else {
		var buf []byte
		buf, err = io.ReadAll(stdin)
		text = string(buf)
	}
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetText(n.Target, text)
	rc.Exit(Complete)
	return Complete
}

func (n *ReadStdio) Reset() {}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

// SaveFile writes the resolution of Value to the file named by Path,
// relative to the facade's tree root if Path is not absolute.
type SaveFile struct {
	Path  values.TextValue
	Value values.TextValue
}

func (n *SaveFile) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	path, err := rc.Controller.GetText(n.Path)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	text, err := rc.Controller.GetText(n.Value)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	if err := os.WriteFile(resolvePath(rc, path), []byte(text), 0o644); err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Exit(Complete)
	return Complete
}

func (n *SaveFile) Reset() {}

// LoadFile reads the file named by Path into Target.
type LoadFile struct {
	Path   values.TextValue
	Target values.VariableID
}

func (n *LoadFile) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	path, err := rc.Controller.GetText(n.Path)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	data, err := os.ReadFile(resolvePath(rc, path))
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetText(n.Target, string(data))
	rc.Exit(Complete)
	return Complete
}

func (n *LoadFile) Reset() {}

// SaveIndexedFile writes Value to Path with an internal counter appended to
// the filename before the extension. The counter increments on every
// successful write and, per spec.md §9 Open Question 2, is never reset by
// Reset() — re-running the node after a tree branch restarts still
// advances to the next index rather than overwriting index 0 again.
type SaveIndexedFile struct {
	Path  values.TextValue
	Value values.TextValue

	counter int
}

func (n *SaveIndexedFile) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	path, err := rc.Controller.GetText(n.Path)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	text, err := rc.Controller.GetText(n.Value)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	indexed := indexedPath(path, n.counter)
	if err := os.WriteFile(resolvePath(rc, indexed), []byte(text), 0o644); err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	n.counter++
	rc.Exit(Complete)
	return Complete
}

// Reset does not clear the counter, so a re-run of the node keeps counting
// from where the previous run stopped.
func (n *SaveIndexedFile) Reset() {}

// LoadIndexedFile is SaveIndexedFile's read-side counterpart, with the same
// never-reset counter discipline.
type LoadIndexedFile struct {
	Path   values.TextValue
	Target values.VariableID

	counter int
}

func (n *LoadIndexedFile) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	path, err := rc.Controller.GetText(n.Path)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	indexed := indexedPath(path, n.counter)
	data, err := os.ReadFile(resolvePath(rc, indexed))
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Controller.SetText(n.Target, string(data))
	n.counter++
	rc.Exit(Complete)
	return Complete
}

func (n *LoadIndexedFile) Reset() {}

func indexedPath(path string, index int) string {
	ext := ""
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			ext = path[i:]
			base = path[:i]
			break
		}
		if path[i] == '/' {
			break
		}
	}
	return fmt.Sprintf("%s.%d%s", base, index, ext)
}

func resolvePath(rc ResumeContext, path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path
	}
	if rc.Facade.TreeRoot == "" {
		return path
	}
	return rc.Facade.TreeRoot + "/" + path
}

// DumpState serializes every slot the controller currently holds to the
// file named by Path, as a single JSON object.
type DumpState struct {
	Path values.TextValue
}

func (n *DumpState) ResumeWith(rc ResumeContext) State {
	rc.Enter()
	path, err := rc.Controller.GetText(n.Path)
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	data, err := json.MarshalIndent(rc.Controller.Snapshot(), "", "  ")
	if err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	if err := os.WriteFile(resolvePath(rc, path), data, 0o644); err != nil {
		rc.Mark(err.Error())
		rc.Exit(Failed)
		return Failed
	}
	rc.Exit(Complete)
	return Complete
}

func (n *DumpState) Reset() {}
