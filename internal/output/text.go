package output

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/moondance-labs/netports/pkg/model"
)

// maxNameWidth bounds the NAME column; command-line fallbacks can be long.
const maxNameWidth = 48

// Printer writes results for humans (tables) or machines (JSON).
type Printer struct {
	Out  io.Writer
	Err  io.Writer
	JSON bool

	r      *lipgloss.Renderer
	header lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	dim    lipgloss.Style
}

func NewPrinter(out, errOut io.Writer, jsonOut, color bool) *Printer {
	r := lipgloss.NewRenderer(out)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		Out:    out,
		Err:    errOut,
		JSON:   jsonOut,
		r:      r,
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5f5fd7")), // Purple/Blue
		ok:     r.NewStyle().Foreground(lipgloss.Color("#5faf5f")),            // Green
		warn:   r.NewStyle().Foreground(lipgloss.Color("#d7af00")),            // Yellow
		dim:    r.NewStyle().Foreground(lipgloss.Color("#585858")),            // Dark Gray
	}
}

// Print renders one result.
func (p *Printer) Print(res model.Result) error {
	if p.JSON {
		data, err := ToJSON(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.Out, string(data))
		return err
	}

	switch res := res.(type) {
	case model.ByPortResult:
		p.byPort(res)
	case model.ByPIDResult:
		p.byPID(res)
	case model.ConflictsResult:
		p.conflicts(res)
	case model.ProbeResult:
		p.probe(res)
	case model.ConnectionsResult:
		p.connections(res)
	}
	return nil
}

func (p *Printer) byPort(res model.ByPortResult) {
	if len(res.Listeners) == 0 {
		fmt.Fprintf(p.Out, "No listeners found on port %d.\n", res.Port)
		return
	}
	fmt.Fprintf(p.Out, "Listeners on port %d:\n", res.Port)
	p.refs(res.Listeners)
}

func (p *Printer) byPID(res model.ByPIDResult) {
	rows := make([][]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		ports := "(none)"
		if len(e.Ports) > 0 {
			s := make([]string, len(e.Ports))
			for i, port := range e.Ports {
				s[i] = strconv.Itoa(port)
			}
			ports = strings.Join(s, ", ")
		}
		rows = append(rows, []string{strconv.Itoa(e.PID), name(e.Name), ports})
	}
	p.table([]string{"PID", "NAME", "LISTENING_PORTS"}, rows)
}

func (p *Printer) conflicts(res model.ConflictsResult) {
	if len(res.Conflicts) == 0 {
		fmt.Fprintln(p.Out, p.ok.Render("No conflicts found."))
		return
	}
	fmt.Fprintln(p.Out, p.warn.Render("Processes with conflicting listeners:"))
	p.table([]string{"PORT", "PID", "NAME", "N"}, ConflictRows(res.Conflicts))
}

// ConflictRows flattens groups into one PORT, PID, NAME, N row per owner.
func ConflictRows(groups []model.ConflictGroup) [][]string {
	var rows [][]string
	for _, g := range groups {
		n := strconv.Itoa(len(g.PIDs))
		for _, pid := range g.PIDs {
			nm, ok := g.Names[pid]
			if !ok {
				nm = "?"
			}
			rows = append(rows, []string{strconv.Itoa(g.Port), strconv.Itoa(pid), name(nm), n})
		}
	}
	return rows
}

func (p *Printer) probe(res model.ProbeResult) {
	addr := net.JoinHostPort(res.Host, strconv.Itoa(res.Port))
	if !res.Bound {
		code, msg := "", ""
		if res.Error != nil {
			code, msg = res.Error.Code, res.Error.Message
		}
		fmt.Fprintln(p.Err, p.warn.Render(fmt.Sprintf("Failed to bind %s with SO_REUSEPORT: %s %s", addr, code, msg)))
		return
	}
	if len(res.Before) == 0 {
		fmt.Fprintln(p.Out, p.ok.Render(fmt.Sprintf("Success: bound %s with SO_REUSEPORT (no pre-existing listeners detected).", addr)))
		return
	}
	fmt.Fprintln(p.Out, p.ok.Render(fmt.Sprintf("Success: bound %s with SO_REUSEPORT while %d listener(s) already existed:", addr, len(res.Before))))
	p.refs(res.Before)
}

func (p *Printer) connections(res model.ConnectionsResult) {
	names := make(map[int]string, len(res.Nodes))
	for _, n := range res.Nodes {
		names[n.PID] = n.Name
		fmt.Fprintf(p.Out, "PID %d: %s  netns=%s\n", n.PID, n.Name, n.NetNS)
		if len(n.ListenersV4) == 0 {
			fmt.Fprintln(p.Out, "  Listening (IPv4): none")
		} else {
			fmt.Fprintln(p.Out, "  Listening (IPv4):")
			for _, l := range n.ListenersV4 {
				fmt.Fprintf(p.Out, "    - %s:%d\n", l.IP, l.Port)
			}
		}
		fmt.Fprintln(p.Out)
	}

	fmt.Fprintln(p.Out, p.header.Render("Direct TCP/IPv4 connections among provided PIDs:"))
	if len(res.Edges) == 0 {
		fmt.Fprintln(p.Out, "  none found")
		if res.SplitNamespaces {
			fmt.Fprintln(p.Out)
			fmt.Fprintln(p.Out, p.warn.Render("Note: Some PIDs are in different network namespaces;"))
			fmt.Fprintln(p.Out, p.warn.Render("      they typically cannot connect directly unless bridged."))
		}
		return
	}
	for i, e := range res.Edges {
		fmt.Fprintf(p.Out, "  [%d] %d(%s) %s:%d  <--%s/%s-->  %s:%d  %d(%s)\n",
			i+1, e.APID, names[e.APID], e.A.LocalIP, e.A.LocalPort, e.A.State, e.B.State,
			e.A.RemoteIP, e.A.RemotePort, e.BPID, names[e.BPID])
		fmt.Fprintln(p.Out, p.dim.Render(fmt.Sprintf("       (A inode=%d, B inode=%d)", e.A.Inode, e.B.Inode)))
	}
}

func (p *Printer) refs(refs []model.ProcessRef) {
	rows := make([][]string, 0, len(refs))
	for _, r := range refs {
		rows = append(rows, []string{strconv.Itoa(r.PID), name(r.Name)})
	}
	p.table([]string{"PID", "NAME"}, rows)
}

// table draws a borderless table with a rule under the header.
func (p *Printer) table(headers []string, rows [][]string) {
	cell := p.r.NewStyle().PaddingRight(2)
	header := p.header.PaddingRight(2)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		BorderStyle(p.dim).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	fmt.Fprintln(p.Out, t.Render())
}

func name(s string) string {
	return truncate.StringWithTail(s, maxNameWidth, "…")
}
