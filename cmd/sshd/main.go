// sshd is a minimal demo server built on blitter.com/go/sshcore: it
// accepts connections, authenticates a user by system password,
// bcrypt-hashed local passwd file, or public key, and services
// "session" channels with pty-req/shell/exec/window-change handling and
// wtmp/lastlog accounting — the same shape xsd.go's accept loop and
// runShellAs drive, generalized onto SSH channels instead of a single
// implicit stream per connection.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
	"unsafe"

	"github.com/kr/pty"
	"golang.org/x/sys/unix"

	"blitter.com/go/goutmp"
	"blitter.com/go/sshcore"
	"blitter.com/go/sshcore/auth"
	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/hostkeys"
	"blitter.com/go/sshcore/logger"
	"blitter.com/go/sshcore/transport"
	"blitter.com/go/sshcore/wire"
)

var Log *logger.Writer

// ptyServer is the pty and running command backing one "session"
// channel, lifted out of xsd.go's runShellAs call stack since the
// channel driving it is now multiplexed over a single connection
// rather than owning it outright.
type ptyServer struct {
	ptmx  *os.File
	cmd   *exec.Cmd
	utmpx *goutmp.Utmpx
}

// ptsName returns the /dev/pts/N path backing ptmx, via the same
// TIOCGPTN ioctl xsd.go uses directly (kr/pty exposes no portable way
// to recover the slave name once the master is open).
func ptsName(f *os.File) (string, error) {
	var n uint32
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), unix.TIOCGPTN, uintptr(unsafe.Pointer(&n)))
	if errno != 0 {
		return "", errno
	}
	return fmt.Sprintf("/dev/pts/%d", n), nil
}

func startShell(who, cmdLine string, interactive bool) (*exec.Cmd, *os.File, error) {
	u, err := user.Lookup(who)
	if err != nil {
		return nil, nil, err
	}
	uid, _ := strconv.Atoi(u.Uid)
	gid, _ := strconv.Atoi(u.Gid)

	var c *exec.Cmd
	if interactive {
		c = exec.Command("/bin/bash", "-i", "-l")
	} else {
		c = exec.Command("/bin/bash", "-c", cmdLine)
	}
	c.Dir = u.HomeDir
	c.Env = []string{"HOME=" + u.HomeDir, "LOGNAME=" + who, "SSHCORE=1"}
	c.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)},
	}

	ptmx, err := pty.Start(c)
	if err != nil {
		return nil, nil, err
	}
	return c, ptmx, nil
}

func publicKeyAcceptable(user_, _ string, keyBlob []byte) bool {
	u, err := user.Lookup(user_)
	if err != nil {
		return false
	}
	data, err := ioutil.ReadFile(u.HomeDir + "/.ssh/authorized_keys")
	if err != nil {
		return false
	}
	keys, err := hostkeys.LoadAuthorizedKeys(data)
	if err != nil {
		return false
	}
	for _, k := range keys {
		hk := hostkeys.HostKey{Public: k.Key}
		if string(hk.PublicKeyBlob()) == string(keyBlob) {
			return true
		}
	}
	return false
}

// connFeed is a non-blocking byte queue fed from a background goroutine
// reading conn, so the single goroutine driving Session never blocks on
// the network directly (the same role the teacher's unbuffered
// stdin-copy goroutine plays relative to runShellAs's main flow).
type connFeed struct {
	ch  chan []byte
	err chan error
}

func newConnFeed(conn net.Conn) *connFeed {
	f := &connFeed{ch: make(chan []byte, 64), err: make(chan error, 1)}
	go func() {
		buf := make([]byte, 16384)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				f.ch <- chunk
			}
			if err != nil {
				f.err <- err
				return
			}
		}
	}()
	return f
}

// pending implements io.Reader over whatever has arrived on ch so far,
// without blocking — the posture sshcore.Session.Read expects.
type pending struct{ buf []byte }

func (p *pending) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		return 0, nil
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

// handleConn drives one connection's Session to completion. Every
// Session call happens from this one goroutine, per the engine's
// single-threaded discipline; the pty-output and conn-reading
// goroutines communicate back only via channels.
func handleConn(conn net.Conn, cfg *sshcore.Config, useSystemPasswd bool, passwdFile string) {
	defer conn.Close()

	type outputMsg struct {
		channelID uint32
		data      []byte
		eof       bool
	}
	ptys := map[uint32]*ptyServer{}
	outCh := make(chan outputMsg, 64)

	cfg.Callbacks = &sshcore.Callbacks{
		Password: func(user, password string) bool {
			if useSystemPasswd {
				ok, verr := auth.VerifySystemPassword(auth.NewPasswordCtx(), user, password)
				if verr != nil {
					logger.LogNotice(fmt.Sprintf("[password verify error for %s: %v]", user, verr))
				}
				return ok
			}
			return auth.VerifyLocalPassword(auth.NewPasswordCtx(), user, password, passwdFile)
		},
		PublicKeyAcceptable: publicKeyAcceptable,
		NewChannel:          func(chanType string) bool { return chanType == "session" },
		Request: func(ch *channel.Channel, reqType string, wantReply bool, r *wire.Reader) bool {
			switch reqType {
			case "pty-req":
				term, _ := r.ReadString()
				cols, _ := r.ReadUint32()
				rows, _ := r.ReadUint32()
				ps := &ptyServer{}
				ptys[ch.LocalID] = ps
				_ = term
				_ = cols
				_ = rows
				return true
			case "window-change":
				cols, _ := r.ReadUint32()
				rows, _ := r.ReadUint32()
				if ps, ok := ptys[ch.LocalID]; ok && ps.ptmx != nil {
					pty.Setsize(ps.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
				}
				return true
			case "shell", "exec":
				cmdLine := ""
				if reqType == "exec" {
					cmd, err := r.ReadString()
					if err != nil {
						return false
					}
					cmdLine = string(cmd)
				}
				ps, ok := ptys[ch.LocalID]
				if !ok {
					ps = &ptyServer{}
					ptys[ch.LocalID] = ps
				}
				c, ptmx, err := startShell("nobody", cmdLine, reqType == "shell")
				if err != nil {
					logger.LogErr(fmt.Sprintf("[starting %s for channel %d: %v]", reqType, ch.LocalID, err))
					return false
				}
				ps.cmd = c
				ps.ptmx = ptmx
				if pts, perr := ptsName(ptmx); perr == nil {
					hname := goutmp.GetHost(conn.RemoteAddr().String())
					ps.utmpx = goutmp.Put_utmp("nobody", pts, hname)
					goutmp.Put_lastlog_entry("sshd", "nobody", pts, hname)
				}
				channelID := ch.LocalID
				go func() {
					buf := make([]byte, 16384)
					for {
						n, err := ptmx.Read(buf)
						if n > 0 {
							chunk := make([]byte, n)
							copy(chunk, buf[:n])
							outCh <- outputMsg{channelID: channelID, data: chunk}
						}
						if err != nil {
							outCh <- outputMsg{channelID: channelID, eof: true}
							return
						}
					}
				}()
				go func() {
					state, _ := c.Wait(), error(nil)
					_ = state
					outCh <- outputMsg{channelID: channelID, eof: true}
				}()
				return true
			default:
				return false
			}
		},
		Data: func(ch *channel.Channel, data []byte) {
			if ps, ok := ptys[ch.LocalID]; ok && ps.ptmx != nil {
				ps.ptmx.Write(data)
			}
		},
		Closed: func(ch *channel.Channel) {
			if ps, ok := ptys[ch.LocalID]; ok {
				if ps.ptmx != nil {
					ps.ptmx.Close()
				}
				if ps.utmpx != nil {
					goutmp.Unput_utmp(ps.utmpx)
				}
				delete(ptys, ch.LocalID)
			}
		},
	}

	sess, err := sshcore.NewServerSession(cfg)
	if err != nil {
		log.Println("NewServerSession:", err)
		return
	}

	feed := newConnFeed(conn)
	pend := &pending{}
	log.Println("sshd: accepted connection from", conn.RemoteAddr())

	for !sess.Closed() {
		select {
		case chunk := <-feed.ch:
			pend.buf = append(pend.buf, chunk...)
		case rerr := <-feed.err:
			_ = rerr
			return
		case out := <-outCh:
			if out.eof {
				sess.CloseChannel(out.channelID)
			} else {
				sess.SendData(out.channelID, out.data)
			}
		}
		if _, err := sess.Read(pend); err != nil {
			log.Println("session read:", err)
			return
		}
		if _, err := sess.Write(conn); err != nil {
			log.Println("session write:", err)
			return
		}
	}
}

func main() {
	var laddr, hostKeyPath, passwdFile string
	var useKCP, useSystemPasswd, dbg bool

	flag.StringVar(&laddr, "l", ":2022", "interface[:port] to listen")
	flag.StringVar(&hostKeyPath, "hostkey", "/etc/ssh/ssh_host_ed25519_key", "path to OpenSSH-format ed25519 host key")
	flag.StringVar(&passwdFile, "passwdfile", "/etc/sshcore.passwd", "local bcrypt passwd file (if -s=false)")
	flag.BoolVar(&useKCP, "K", false, "listen over KCP (github.com/xtaci/kcp-go) instead of TCP")
	flag.BoolVar(&useSystemPasswd, "s", true, "authenticate against the system shadow file")
	flag.BoolVar(&dbg, "d", false, "debug logging")
	flag.Parse()

	Log, _ = logger.New(logger.LOG_DAEMON|logger.LOG_DEBUG|logger.LOG_NOTICE|logger.LOG_ERR, "sshd")
	if dbg {
		log.SetOutput(Log)
	} else {
		log.SetOutput(ioutil.Discard)
	}

	keyData, err := ioutil.ReadFile(hostKeyPath)
	if err != nil {
		log.Fatal("reading host key: ", err)
	}
	hostKey, err := hostkeys.LoadPrivateKey(keyData)
	if err != nil {
		log.Fatal("parsing host key: ", err)
	}

	var ln net.Listener
	if useKCP {
		ln, err = transport.ListenKCP(laddr, transport.Options{Cipher: transport.BlockCipherAES})
	} else {
		ln, err = transport.ListenTCP(laddr)
	}
	if err != nil {
		log.Fatal("listen: ", err)
	}
	defer ln.Close()

	log.Println("sshd: serving on", laddr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Println("accept:", err)
			continue
		}
		cfg := sshcore.DefaultConfig()
		cfg.HostKey = hostKey
		cfg.AuthMethods = auth.AllMethods
		go handleConn(conn, cfg, useSystemPasswd, passwdFile)
	}
}
