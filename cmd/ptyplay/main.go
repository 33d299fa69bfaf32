// Command ptyplay is a small REPL for driving a daemon session from a
// terminal, generalizing the original's tools/pty_playground.py from a
// direct in-process PTY object to a client of the daemon's socket
// protocol.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"agentpty/internal/ptyconfig"
)

type wireRequest struct {
	Type     string            `json:"type"`
	ID       string            `json:"id"`
	Command  string            `json:"command,omitempty"`
	Args     []string          `json:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Cols     int               `json:"cols,omitempty"`
	Rows     int               `json:"rows,omitempty"`
	Data     string            `json:"data,omitempty"`
	Key      string            `json:"key,omitempty"`
	MaxLines int               `json:"max_lines,omitempty"`
}

type wireResponse struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Status      string `json:"status"`
	Output      string `json:"output"`
	Screen      string `json:"screen"`
	StateReason string `json:"state_reason"`
	Scrollback  string `json:"scrollback"`
	Message     string `json:"message"`
	Code        string `json:"code"`
}

// playground holds the socket connection and pending-reply decoder for
// one REPL session.
type playground struct {
	conn    net.Conn
	enc     *json.Encoder
	dec     *json.Decoder
	session string
}

func main() {
	var cfgPath, shell string
	root := &cobra.Command{
		Use:   "ptyplay",
		Short: "Interactive playground for driving an agentptyd session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ptyconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			return runPlayground(cfg, shell)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	root.Flags().StringVar(&shell, "shell", "/bin/bash", "shell command to launch")
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPlayground(cfg ptyconfig.Config, shell string) error {
	sockPath := filepath.Join(cfg.RootDir, "agentptyd.sock")
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return fmt.Errorf("connect to daemon (is it running?): %w", err)
	}
	defer conn.Close()

	cols, rows := cfg.Cols, cfg.Rows
	if c, r, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		cols, rows = c, r
	}

	p := &playground{conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn), session: "playground"}
	created, err := p.roundTrip(wireRequest{Type: "create", ID: p.session, Command: shell, Cols: cols, Rows: rows})
	if err != nil {
		return err
	}
	if created.Type == "error" {
		return fmt.Errorf("create session: %s", created.Message)
	}

	fmt.Println("PTY Playground - Quiescence-based Terminal")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("Type /help for commands or /exit to quit")
	fmt.Printf("Transcript: %s\n", created.Message)
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("\nInitial state: %s\nScreen:\n%s\n", created.Status, created.Screen)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if p.slashCommand(line) {
				break
			}
			continue
		}
		resp, err := p.roundTrip(wireRequest{Type: "run", ID: p.session, Command: line})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Printf("Status: %s\nOutput:\n%s\n", resp.Status, resp.Output)
	}

	_, _ = p.roundTrip(wireRequest{Type: "terminate", ID: p.session})
	return nil
}

// slashCommand handles one /command line, returning true if the REPL
// should exit.
func (p *playground) slashCommand(line string) bool {
	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToLower(parts[0])
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/exit", "/quit":
		return true
	case "/help":
		printHelp()
	case "/get_screen":
		if resp, err := p.roundTrip(wireRequest{Type: "get_screen", ID: p.session}); err == nil {
			fmt.Printf("\nScreen:\n%s\n", resp.Screen)
		}
	case "/state":
		if resp, err := p.roundTrip(wireRequest{Type: "get_screen", ID: p.session}); err == nil {
			fmt.Printf("\nState: %s\nReason: %s\n", resp.Status, resp.StateReason)
		}
	case "/transcript":
		if resp, err := p.roundTrip(wireRequest{Type: "get_metadata", ID: p.session}); err == nil {
			fmt.Printf("\nTranscript: %s\n", resp.Message)
		}
	case "/poll_output":
		if resp, err := p.roundTrip(wireRequest{Type: "poll_output", ID: p.session}); err == nil {
			fmt.Printf("\nStatus: %s\nOutput:\n%s\n", resp.Status, resp.Output)
		}
	case "/check_jobs":
		if resp, err := p.roundTrip(wireRequest{Type: "run", ID: p.session, Command: "jobs -l"}); err == nil {
			fmt.Printf("\nStatus: %s\nOutput:\n%s\n", resp.Status, resp.Output)
		}
	case "/ctrl":
		if arg == "" {
			fmt.Println("Usage: /ctrl <key>")
			return false
		}
		if resp, err := p.roundTrip(wireRequest{Type: "send_control", ID: p.session, Key: strings.ToLower(arg)}); err == nil {
			fmt.Printf("Status: %s\nState: %s (%s)\nScreen:\n%s\n", resp.Status, resp.Status, resp.StateReason, resp.Screen)
		}
	case "/status":
		if resp, err := p.roundTrip(wireRequest{Type: "get_screen", ID: p.session}); err == nil {
			fmt.Printf("\nState: %s (%s)\n", resp.Status, resp.StateReason)
		}
	case "/raw":
		if arg == "" {
			fmt.Println("Usage: /raw <text>")
			return false
		}
		if resp, err := p.roundTrip(wireRequest{Type: "send_input", ID: p.session, Data: arg}); err == nil {
			fmt.Printf("Status: %s\nOutput:\n%s\n", resp.Status, resp.Output)
		}
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
	}
	return false
}

func (p *playground) roundTrip(req wireRequest) (wireResponse, error) {
	if err := p.enc.Encode(req); err != nil {
		return wireResponse{}, err
	}
	var resp wireResponse
	if err := p.dec.Decode(&resp); err != nil {
		return wireResponse{}, err
	}
	return resp, nil
}

func printHelp() {
	fmt.Println(`
Commands:
  /help          - Show this help
  /exit, /quit   - Exit playground
  /get_screen    - Get current screen content
  /state         - Detect terminal state
  /transcript    - Show transcript file path
  /poll_output   - Return output available now, without waiting
  /check_jobs    - Run 'jobs -l' in session
  /ctrl <key>    - Send control character (c, d, z, l, [)
  /status        - Show session status
  /raw <text>    - Send text without a trailing newline

Input:
  Regular text (without /) is sent as a command with newline.`)
}
