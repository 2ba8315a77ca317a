// Package console prints the human-readable side of a provisioning run:
// status lines, the results summary and the manual follow-up steps.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"

	"github.com/etnz/rddsetup/rddapp"
)

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 80

// Printer writes to the user. It implements rddapp.Reporter.
type Printer struct {
	w     io.Writer
	width int
}

var _ rddapp.Reporter = (*Printer)(nil)

// New creates a Printer on w. Notes are wrapped to the terminal width when w
// is a terminal.
func New(w io.Writer) *Printer {
	width := defaultWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	return &Printer{w: w, width: width}
}

// NewWithWidth creates a Printer with a fixed wrap width.
func NewWithWidth(w io.Writer, width int) *Printer {
	return &Printer{w: w, width: width}
}

// Banner prints the run header and what the tool expects to find.
func (p *Printer) Banner() {
	fmt.Fprintln(p.w, "=== Creating the Google files for Odoo RDD ===")
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "⚠️  Note: this tool needs:")
	p.item("1.", "A credentials.json file (downloaded from the Google Cloud Console)")
	p.item("2.", "The Drive API, Sheets API and Apps Script API enabled in the Cloud project")
	fmt.Fprintln(p.w)
}

// Resolved prints one status line for a found or created resource.
func (p *Printer) Resolved(kind string, f *rddapp.File) {
	if f.Created {
		fmt.Fprintf(p.w, "✓ Created %s: %s (ID: %s)\n", kind, f.Name, f.ID)
		return
	}
	fmt.Fprintf(p.w, "✓ Found existing %s: %s (ID: %s)\n", kind, f.Name, f.ID)
}

// Failed prints the error that stopped a step.
func (p *Printer) Failed(step string, err error) {
	fmt.Fprintf(p.w, "✗ Error while %s: %v\n", step, err)
}

// Error prints an error that happened outside the provisioning steps.
func (p *Printer) Error(err error) {
	fmt.Fprintf(p.w, "✗ Error: %v\n", err)
}

// MissingCredentials tells the user where to get the client secret file.
func (p *Printer) MissingCredentials(path string) {
	fmt.Fprintf(p.w, "✗ %s not found.\n", path)
	p.item("", "Download it from: "+rddapp.CredentialsURL)
}

// Summary prints the identifiers and URLs of the run.
func (p *Printer) Summary(res *rddapp.Result) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "=== RESULTS ===")
	fmt.Fprintf(p.w, "Folder ID: %s\n", res.Folder.ID)
	fmt.Fprintf(p.w, "Template ID: %s\n", res.Template.ID)
	fmt.Fprintf(p.w, "Template URL: %s\n", res.TemplateURL())
	if res.Library != nil {
		fmt.Fprintf(p.w, "Library ID: %s\n", res.Library.ID)
		fmt.Fprintf(p.w, "Library URL: %s\n", rddapp.ScriptURL(res.Library.ID))
	}
}

// LibraryInstructions prints the manual steps for the Apps Script library
// when the tool did not create it.
func (p *Printer) LibraryInstructions(libraryName string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "⚠️  To create the Apps Script library project:")
	p.item("-", "Go to https://script.google.com")
	p.item("-", "Create a new project named: "+libraryName)
	p.item("-", "Note the Script ID from the project settings")
	p.item("-", "Open the template, then Extensions > Apps Script > Libraries, and add the Script ID")
	p.item("-", "Or set create_library = true in rddsetup.toml to let this tool create it")
}

// item prints an indented entry. Wrapped lines are aligned with the text,
// not the marker.
func (p *Printer) item(marker, text string) {
	prefix := "   "
	if marker != "" {
		prefix += marker + " "
	}
	indent := strings.Repeat(" ", len(prefix))

	textWidth := p.width - len(prefix)
	if textWidth < 20 {
		textWidth = 20
	}

	lines := strings.Split(wordwrap.WrapString(text, uint(textWidth)), "\n")
	for i, line := range lines {
		if i == 0 {
			fmt.Fprintf(p.w, "%s%s\n", prefix, line)
			continue
		}
		fmt.Fprintf(p.w, "%s%s\n", indent, line)
	}
}
