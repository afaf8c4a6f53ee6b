// Command geofenced-ctl is the control-socket client for geofenced: it
// queries daemon status, lists and creates zones, and can request a
// graceful shutdown.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/network-dmenu/geofenced/internal/brand"
	"github.com/network-dmenu/geofenced/internal/ipc"
)

// Exit codes per the control-socket contract.
const (
	exitOK             = 0
	exitGenericFailure = 1
	exitDaemonDown     = 2
	exitNotFoundOrDup  = 3
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(brand.BinaryName+"-ctl", flag.ContinueOnError)
	socketPath := fs.String("socket", brand.GetSocketPath(), "Path to the daemon control socket")
	status := fs.Bool("daemon-status", false, "Show daemon phase and current zone")
	listZones := fs.Bool("list-zones", false, "List configured zones")
	currentZone := fs.Bool("current-zone", false, "Print the current zone")
	whereAmI := fs.Bool("where-am-i", false, "Scan now and show every zone's live similarity score")
	stopDaemon := fs.Bool("stop-daemon", false, "Ask the daemon to shut down")
	createZone := fs.String("create-zone", "", "Create a zone with this name, capturing the current fingerprint")
	deleteZone := fs.String("delete-zone", "", "Delete the zone with this id")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "%s: control client for %s\n\n", fs.Name(), brand.Name)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitGenericFailure
	}

	client := ipc.NewClient(*socketPath)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *status:
		return cmdStatus(ctx, client)
	case *listZones:
		return cmdListZones(ctx, client)
	case *currentZone:
		return cmdCurrentZone(ctx, client)
	case *whereAmI:
		return cmdWhereAmI(ctx, client)
	case *stopDaemon:
		return cmdStopDaemon(ctx, client)
	case *createZone != "":
		return cmdCreateZone(ctx, client, *createZone)
	case *deleteZone != "":
		return cmdDeleteZone(ctx, client, *deleteZone)
	default:
		fs.Usage()
		return exitGenericFailure
	}
}

func cmdStatus(ctx context.Context, client *ipc.Client) int {
	var res ipc.StatusResult
	if code := callSimple(ctx, client, ipc.CmdDaemonStatus, &res); code != exitOK {
		return code
	}
	fmt.Println(titleStyle.Render("geofenced status"))
	fmt.Printf("  phase:        %s\n", res.Phase)
	fmt.Printf("  current zone: %s\n", orDash(res.CurrentZoneName))
	fmt.Printf("  last scan:    %s\n", humanizeTimestamp(res.LastScanAt))
	fmt.Printf("  last change:  %s\n", humanizeTimestamp(res.LastTransitionAt))
	fmt.Printf("  transitions:  %d\n", res.TotalTransitions)
	return exitOK
}

func cmdListZones(ctx context.Context, client *ipc.Client) int {
	var zones []ipc.ZoneSummary
	if code := callSimple(ctx, client, ipc.CmdListZones, &zones); code != exitOK {
		return code
	}
	if len(zones) == 0 {
		fmt.Println(dimStyle.Render("no zones configured"))
		return exitOK
	}
	fmt.Println(renderZoneTable(zones))
	return exitOK
}

// renderZoneTable renders zones as a static bubbles/table view; no
// bubbletea program is run since this is a one-shot CLI, not a TUI.
func renderZoneTable(zones []ipc.ZoneSummary) string {
	columns := []table.Column{
		{Title: "ID", Width: 36},
		{Title: "Name", Width: 24},
		{Title: "Threshold", Width: 9},
	}
	rows := make([]table.Row, 0, len(zones))
	for _, z := range zones {
		rows = append(rows, table.Row{z.ID, z.Name, fmt.Sprintf("%.2f", z.Threshold)})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).BorderBottom(true).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.NoColor{})
	t.SetStyles(styles)
	return t.View()
}

func cmdCurrentZone(ctx context.Context, client *ipc.Client) int {
	var zone ipc.ZoneSummary
	if code := callSimple(ctx, client, ipc.CmdCurrentZone, &zone); code != exitOK {
		return code
	}
	if zone.Name == "" {
		fmt.Println("Unknown")
		return exitOK
	}
	fmt.Println(zone.Name)
	return exitOK
}

func cmdWhereAmI(ctx context.Context, client *ipc.Client) int {
	var res ipc.WhereAmIResult
	if code := callSimple(ctx, client, ipc.CmdWhereAmI, &res); code != exitOK {
		return code
	}
	fmt.Println(titleStyle.Render("live fingerprint"))
	fmt.Printf("  wifi seen:      %d\n", len(res.Fingerprint.Wifi))
	fmt.Printf("  bluetooth seen: %d\n", len(res.Fingerprint.Bluetooth))
	if len(res.Scores) == 0 {
		fmt.Println(dimStyle.Render("no zones configured"))
		return exitOK
	}
	fmt.Println(titleStyle.Render("zone scores"))
	for _, s := range res.Scores {
		fmt.Printf("  %-24s %.3f\n", s.ZoneName, s.Score)
	}
	return exitOK
}

func cmdDeleteZone(ctx context.Context, client *ipc.Client, id string) int {
	params, err := marshalParams(ipc.DeleteZoneParams{ID: id})
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
		return exitGenericFailure
	}
	resp, err := client.Call(ctx, ipc.Request{Command: ipc.CmdDeleteZone, Params: params})
	if code, handled := handleDialErr(err); handled {
		return code
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, errStyle.Render(resp.Error))
		return exitNotFoundOrDup
	}
	fmt.Printf("zone %q deleted\n", id)
	return exitOK
}

func cmdStopDaemon(ctx context.Context, client *ipc.Client) int {
	var out map[string]string
	if code := callSimple(ctx, client, ipc.CmdStopDaemon, &out); code != exitOK {
		return code
	}
	fmt.Println("daemon stopping")
	return exitOK
}

func cmdCreateZone(ctx context.Context, client *ipc.Client, name string) int {
	thresholdStr := "0.6"
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Match threshold").
			Description("Minimum similarity score (0.0-1.0) required to match this zone").
			Value(&thresholdStr),
	))
	if err := form.Run(); err != nil && !errors.Is(err, huh.ErrUserAborted) {
		fmt.Fprintln(os.Stderr, errStyle.Render("prompt failed: "+err.Error()))
		return exitGenericFailure
	}
	threshold, err := strconv.ParseFloat(thresholdStr, 64)
	if err != nil || threshold <= 0 || threshold > 1 {
		fmt.Fprintln(os.Stderr, errStyle.Render("threshold must be a number in (0, 1]"))
		return exitGenericFailure
	}

	params, err := marshalParams(ipc.CreateZoneParams{Name: name, Threshold: threshold})
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
		return exitGenericFailure
	}
	resp, err := client.Call(ctx, ipc.Request{Command: ipc.CmdCreateZone, Params: params})
	if code, handled := handleDialErr(err); handled {
		return code
	}
	if !resp.OK {
		fmt.Fprintln(os.Stderr, errStyle.Render(resp.Error))
		return exitNotFoundOrDup
	}
	fmt.Printf("zone %q created\n", name)
	return exitOK
}

func callSimple(ctx context.Context, client *ipc.Client, cmd ipc.CommandKind, out any) int {
	err := client.CallSimple(ctx, cmd, out)
	if code, handled := handleDialErr(err); handled {
		return code
	}
	return exitOK
}

// handleDialErr classifies err into an exit code. The second return
// value is false when err is nil (caller should keep going).
func handleDialErr(err error) (int, bool) {
	if err == nil {
		return exitOK, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, warnStyle.Render("geofenced is not running"))
		return exitDaemonDown, true
	}
	fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
	return exitGenericFailure, true
}

func marshalParams(v any) (json.RawMessage, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	return body, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func humanizeTimestamp(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil || t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
