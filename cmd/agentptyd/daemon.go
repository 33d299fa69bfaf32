package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"agentpty/internal/ptyconfig"
	"agentpty/internal/ptyerr"
	"agentpty/internal/ptylog"
	"agentpty/internal/ptyregistry"
	"agentpty/internal/ptysession"
	"agentpty/internal/quiescence"
)

// client represents one connection to the daemon. Adapted from the
// teacher's Client: an encoder guarded by its own mutex (multiple
// goroutines may write to one connection — the request handler and any
// broadcast fan-out).
type client struct {
	conn    net.Conn
	mu      sync.Mutex
	encoder *json.Encoder

	attachMu sync.Mutex
	attached map[string]context.CancelFunc
}

func (c *client) send(msg interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.encoder.Encode(msg)
}

func runDaemon(cfg ptyconfig.Config, logger *ptylog.Logger) {
	log := logger.Component("daemon")

	if err := os.MkdirAll(socketDir(cfg), 0o755); err != nil {
		log.Sugar().Fatalf("create socket dir: %v", err)
	}
	if err := os.WriteFile(pidPath(cfg), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		log.Sugar().Warnf("write pid file: %v", err)
	}
	_ = os.Remove(socketPath(cfg))

	reg := ptyregistry.New(cfg, logger)

	ln, err := net.Listen("unix", socketPath(cfg))
	if err != nil {
		log.Sugar().Fatalf("listen on %s: %v", socketPath(cfg), err)
	}
	_ = os.Chmod(socketPath(cfg), 0o600)
	log.Info("daemon listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		log.Info("shutting down")
		_ = ln.Close()
		reg.TerminateAll()
		_ = os.Remove(socketPath(cfg))
		_ = os.Remove(pidPath(cfg))
		os.Exit(0)
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			break
		}
		go handleClient(conn, reg, cfg, log)
	}
}

func handleClient(conn net.Conn, reg *ptyregistry.Registry, cfg ptyconfig.Config, log *ptylog.Logger) {
	c := &client{conn: conn, encoder: json.NewEncoder(conn), attached: make(map[string]context.CancelFunc)}
	defer func() {
		c.attachMu.Lock()
		for _, cancel := range c.attached {
			cancel()
		}
		c.attachMu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			c.send(Response{Type: "error", Message: "malformed JSON"})
			continue
		}
		handleRequest(c, &req, reg, cfg, log)
	}
}

func handleRequest(c *client, req *Request, reg *ptyregistry.Registry, cfg ptyconfig.Config, log *ptylog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MaxWait()+5*time.Second)
	defer cancel()

	switch req.Type {
	case "create":
		env := make([]string, 0, len(req.Env))
		for k, v := range req.Env {
			env = append(env, k+"="+v)
		}
		sess, err := reg.Create(ptysession.CreateOptions{
			ID: req.ID, Command: req.Command, Args: req.Args,
			Cwd: req.Cwd, Env: env, Cols: req.Cols, Rows: req.Rows,
		})
		if err != nil {
			sendErr(c, req.ID, err)
			return
		}
		meta := sess.GetMetadata()
		c.send(Response{Type: "created", ID: sess.ID(), Pid: 0, Status: "ready", Screen: sess.GetScreen().Screen, Message: meta.TranscriptDir})

	case "run":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			resp, err := sess.Run(ctx, req.Command)
			sendResp(c, req.ID, resp, err)
		})

	case "send_input":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			resp, err := sess.SendInput(ctx, req.Data)
			sendResp(c, req.ID, resp, err)
		})

	case "send_control":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			resp, err := sess.SendControl(ctx, req.Key)
			sendResp(c, req.ID, resp, err)
		})

	case "send_password":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			resp, err := sess.SendPassword(ctx, req.Password)
			sendResp(c, req.ID, resp, err)
		})

	case "send_signal":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			if err := sess.SendSignal(req.Signal); err != nil {
				sendErr(c, req.ID, err)
				return
			}
			c.send(Response{Type: "ok", ID: req.ID})
		})

	case "poll_output":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			resp := sess.PollOutput()
			c.send(toResponse("polled", req.ID, resp))
		})

	case "expect":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			matched, resp := sess.Expect(ctx, quiescence.Literal(req.Pattern))
			out := toResponse("expected", req.ID, resp)
			out.Matched = matched
			c.send(out)
		})

	case "expect_prompt":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			matched, resp := sess.ExpectPrompt(ctx)
			out := toResponse("expected", req.ID, resp)
			out.Matched = matched
			c.send(out)
		})

	case "get_screen":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			c.send(toResponse("screen", req.ID, sess.GetScreen()))
		})

	case "get_scrollback":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			c.send(Response{Type: "scrollback", ID: req.ID, Scrollback: sess.GetScrollback(req.MaxLines)})
		})

	case "clear_scrollback":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			sess.ClearScrollback()
			c.send(Response{Type: "ok", ID: req.ID})
		})

	case "configure_session":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			if err := sess.ConfigureSession(req.Prompt, req.Cols, req.Rows); err != nil {
				sendErr(c, req.ID, err)
				return
			}
			c.send(Response{Type: "ok", ID: req.ID})
		})

	case "get_child_env":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			env, err := sess.GetChildEnv(ctx, req.Keys...)
			if err != nil {
				sendErr(c, req.ID, err)
				return
			}
			c.send(Response{Type: "env", ID: req.ID, Env: env})
		})

	case "get_metadata":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			meta := sess.GetMetadata()
			c.send(Response{Type: "metadata", ID: meta.ID, Message: meta.TranscriptDir, Status: aliveStatus(meta.Alive)})
		})

	case "list":
		var sessions []SessionInfo
		for _, m := range reg.List() {
			sessions = append(sessions, SessionInfo{
				ID: m.ID, Command: m.Command, Alive: m.Alive,
				ExitCode: m.ExitCode, TranscriptDir: m.TranscriptDir,
			})
		}
		c.send(Response{Type: "listed", Sessions: sessions})

	case "attach":
		withSession(c, reg, req.ID, func(sess *ptysession.Session) {
			c.attachMu.Lock()
			if _, already := c.attached[req.ID]; already {
				c.attachMu.Unlock()
				c.send(Response{Type: "attached", ID: req.ID})
				return
			}
			subCtx, cancel := context.WithCancel(context.Background())
			c.attached[req.ID] = cancel
			c.attachMu.Unlock()

			ch := sess.Subscribe(subCtx)
			go func() {
				for chunk := range ch {
					c.send(DataEvent{Type: "data", ID: req.ID, Data: string(chunk)})
				}
				meta := sess.GetMetadata()
				if !meta.Alive {
					c.send(ExitEvent{Type: "exit", ID: req.ID, ExitCode: meta.ExitCode})
				}
			}()
			c.send(Response{Type: "attached", ID: req.ID, Screen: sess.GetScreen().Screen})
		})

	case "detach":
		c.attachMu.Lock()
		if cancel, ok := c.attached[req.ID]; ok {
			cancel()
			delete(c.attached, req.ID)
		}
		c.attachMu.Unlock()
		c.send(Response{Type: "ok", ID: req.ID})

	case "terminate":
		if err := reg.Terminate(req.ID); err != nil {
			sendErr(c, req.ID, err)
			return
		}
		c.send(Response{Type: "terminated", ID: req.ID})

	default:
		c.send(Response{Type: "error", Message: "unknown type: " + req.Type})
	}
}

func withSession(c *client, reg *ptyregistry.Registry, id string, fn func(*ptysession.Session)) {
	sess, err := reg.Get(id)
	if err != nil {
		sendErr(c, id, err)
		return
	}
	fn(sess)
}

func sendResp(c *client, id string, resp ptysession.Response, err error) {
	if err != nil {
		sendErr(c, id, err)
		return
	}
	c.send(toResponse("result", id, resp))
}

func toResponse(typ, id string, resp ptysession.Response) Response {
	return Response{
		Type: typ, ID: id, Status: string(resp.Status), Output: resp.Output,
		Screen: resp.Screen, StateReason: resp.StateReason,
	}
}

func sendErr(c *client, id string, err error) {
	code := ptyerr.Code(err)
	c.send(Response{Type: "error", ID: id, Message: err.Error(), Code: code})
}

func aliveStatus(alive bool) string {
	if alive {
		return "alive"
	}
	return "terminated"
}
