package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lithium/pkg/css"
	"lithium/pkg/engine"
	"lithium/pkg/html"
	"lithium/pkg/layout"
)

// dumpCommand builds a command that prints one stage of the pipeline.
func (c *CLI) dumpCommand(use, short string, dump func(f *engine.Frame, w io.Writer) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file|url|->",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, _, err := c.frame(cmd.Context(), args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return dump(f, cmd.OutOrStdout())
		},
	}
}

func (c *CLI) domCommand() *cobra.Command {
	var serialize bool
	cmd := c.dumpCommand("dom", "Print the parsed document tree", func(f *engine.Frame, w io.Writer) error {
		if serialize {
			_, err := fmt.Fprintln(w, f.Document.Serialize())
			return err
		}
		_, err := io.WriteString(w, f.Document.Dump(f.Document.Root))
		return err
	})
	cmd.Flags().BoolVar(&serialize, "html", false, "print the document as markup")
	return cmd
}

func (c *CLI) boxesCommand() *cobra.Command {
	return c.dumpCommand("boxes", "Print the box tree", func(f *engine.Frame, w io.Writer) error {
		_, err := io.WriteString(w, layout.DumpBoxes(f.Document, f.Boxes))
		return err
	})
}

func (c *CLI) layoutCommand() *cobra.Command {
	return c.dumpCommand("layout", "Print the laid out fragments with their positions", func(f *engine.Frame, w io.Writer) error {
		_, err := io.WriteString(w, layout.Dump(f.Document, f.Layout.Root))
		return err
	})
}

func (c *CLI) paintCommand() *cobra.Command {
	return c.dumpCommand("paint", "Print the display list", func(f *engine.Frame, w io.Writer) error {
		_, err := io.WriteString(w, f.Display.String())
		return err
	})
}

func (c *CLI) cssCommand() *cobra.Command {
	var all bool
	cmd := c.dumpCommand("css", "Print the computed style of every element", func(f *engine.Frame, w io.Writer) error {
		return writeStyles(w, f, all)
	})
	cmd.Flags().BoolVar(&all, "all", false, "include properties with their initial value")
	return cmd
}

// writeStyles prints one block per element in document order. Without all
// only properties that differ from their initial value are listed.
func writeStyles(w io.Writer, f *engine.Frame, all bool) error {
	doc := f.Document
	initial := css.Initial()
	var sb strings.Builder
	doc.Walk(doc.Root, func(id html.NodeID) bool {
		n := doc.Node(id)
		if n.Type == html.DocumentNode {
			return true
		}
		s := f.Styles.Get(id)
		if n.Type != html.ElementNode || s == nil {
			return false
		}
		fmt.Fprintf(&sb, "%s {\n", selectorFor(doc, id))
		for _, name := range css.PropertyNames() {
			v, _ := s.Value(name)
			if iv, _ := initial.Value(name); !all && v == iv {
				continue
			}
			fmt.Fprintf(&sb, "  %s: %s;\n", name, v)
		}
		sb.WriteString("}\n")
		return true
	})
	_, err := io.WriteString(w, sb.String())
	return err
}

func selectorFor(doc *html.Document, id html.NodeID) string {
	n := doc.Node(id)
	sel := n.TagName
	if v := doc.ID(id); v != "" {
		sel += "#" + v
	}
	for _, class := range doc.Classes(id) {
		sel += "." + class
	}
	return fmt.Sprintf("%s /* node %d */", sel, id)
}
