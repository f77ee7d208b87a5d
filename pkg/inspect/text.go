package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used by the text renderer. The zero Styles renders plain text.
type Styles struct {
	Title   lipgloss.Style
	Keyword lipgloss.Style
	Name    lipgloss.Style
	Type    lipgloss.Style
	Dim     lipgloss.Style
}

// ColorStyles returns the terminal palette.
func ColorStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		Keyword: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C")),
		Name: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98")),
		Type: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}

// PlainStyles returns styles that add no escape sequences.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Title: plain, Keyword: plain, Name: plain, Type: plain, Dim: plain}
}

// WriteText renders s in a javap-like layout.
func WriteText(w io.Writer, s *Summary, st Styles) error {
	_, err := io.WriteString(w, Text(s, st))
	return err
}

// Text renders s in a javap-like layout.
func Text(s *Summary, st Styles) string {
	var b strings.Builder

	header := s.Name
	if s.SourceFile != "" {
		header += " (" + s.SourceFile + ")"
	}
	b.WriteString(st.Title.Render(header))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s, minor %d, %d constants\n",
		st.Dim.Render("version"), s.Version, s.Minor, s.Constants)

	decl := keywords(st, s.Access) + st.Name.Render(strings.ReplaceAll(s.Name, "/", "."))
	if s.Super != "" && s.Super != "java/lang/Object" {
		decl += " " + st.Keyword.Render("extends") + " " + st.Type.Render(dotted(s.Super))
	}
	if len(s.Interfaces) > 0 {
		names := make([]string, len(s.Interfaces))
		for i, n := range s.Interfaces {
			names[i] = st.Type.Render(dotted(n))
		}
		decl += " " + st.Keyword.Render("implements") + " " + strings.Join(names, ", ")
	}
	b.WriteString(decl)
	b.WriteString(" {\n")
	if s.Signature != "" {
		fmt.Fprintf(&b, "  %s %s\n", st.Dim.Render("// signature"), s.Signature)
	}

	for _, f := range s.Fields {
		fmt.Fprintf(&b, "  %s%s %s;\n", keywords(st, f.Access), st.Type.Render(f.Type), st.Name.Render(f.Name))
		writeMemberDetails(&b, f, st)
	}
	if len(s.Fields) > 0 && len(s.Methods) > 0 {
		b.WriteString("\n")
	}
	for _, m := range s.Methods {
		b.WriteString("  ")
		b.WriteString(MethodLine(m, st))
		b.WriteString(";\n")
		writeMemberDetails(&b, m, st)
	}
	b.WriteString("}\n")

	if len(s.Attributes) > 0 {
		fmt.Fprintf(&b, "%s %s\n", st.Dim.Render("attributes:"), strings.Join(s.Attributes, ", "))
	}
	return b.String()
}

// MethodLine renders a method declaration without a trailing semicolon.
func MethodLine(m MemberSummary, st Styles) string {
	ret, args := splitMethodType(m.Type)
	params := make([]string, len(args))
	for i, a := range args {
		p := st.Type.Render(a)
		if i < len(m.Parameters) {
			p += " " + m.Parameters[i]
		}
		params[i] = p
	}
	line := keywords(st, m.Access) + st.Type.Render(ret) + " " + st.Name.Render(m.Name) + "(" + strings.Join(params, ", ") + ")"
	if len(m.Exceptions) > 0 {
		names := make([]string, len(m.Exceptions))
		for i, e := range m.Exceptions {
			names[i] = dotted(e)
		}
		line += " " + st.Keyword.Render("throws") + " " + strings.Join(names, ", ")
	}
	return line
}

func writeMemberDetails(b *strings.Builder, m MemberSummary, st Styles) {
	var details []string
	details = append(details, "descriptor "+m.Descriptor)
	if m.Signature != "" {
		details = append(details, "signature "+m.Signature)
	}
	if len(m.Slots) > 0 {
		details = append(details, fmt.Sprintf("slots %v", m.Slots))
	}
	if c := m.Code; c != nil {
		details = append(details, fmt.Sprintf("code %d bytes, stack=%d, locals=%d", c.Length, c.MaxStack, c.MaxLocals))
		if c.Handlers > 0 {
			details = append(details, fmt.Sprintf("%d handlers", c.Handlers))
		}
		if c.Lines > 0 {
			details = append(details, fmt.Sprintf("%d lines", c.Lines))
		}
		if c.StackFrames > 0 {
			details = append(details, fmt.Sprintf("%d frames", c.StackFrames))
		}
	}
	for _, d := range details {
		b.WriteString("    ")
		b.WriteString(st.Dim.Render("// " + d))
		b.WriteString("\n")
	}
}

func keywords(st Styles, access string) string {
	if access == "" {
		return ""
	}
	var words []string
	for _, w := range strings.Fields(access) {
		if w == "super" {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return ""
	}
	return st.Keyword.Render(strings.Join(words, " ")) + " "
}

// splitMethodType splits the "ret (a, b)" form produced by JavaName.
func splitMethodType(t string) (ret string, args []string) {
	open := strings.Index(t, " (")
	if open < 0 || !strings.HasSuffix(t, ")") {
		return t, nil
	}
	ret = t[:open]
	inner := t[open+2 : len(t)-1]
	if inner == "" {
		return ret, nil
	}
	return ret, strings.Split(inner, ", ")
}

func dotted(internalName string) string {
	return strings.ReplaceAll(internalName, "/", ".")
}
