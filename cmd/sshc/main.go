// sshc is a minimal demo client built on blitter.com/go/sshcore: it
// dials a server, authenticates by password or private key, opens a
// "session" channel, requests a pty and shell, and bridges the local
// terminal to it — the same interactive shape hkexsh.go drives,
// generalized onto a negotiated SSH channel instead of an implicit
// connection-wide stream.
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

	isatty "github.com/mattn/go-isatty"

	"blitter.com/go/sshcore"
	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/hostkeys"
	"blitter.com/go/sshcore/logger"
	"blitter.com/go/sshcore/transport"
	"blitter.com/go/sshcore/wire"
)

var Log *logger.Writer

// stdinFeed mirrors cmd/sshd's connFeed: a background goroutine reads
// os.Stdin (which blocks) and hands chunks to the single goroutine
// driving the Session over a channel.
type stdinFeed struct {
	ch  chan []byte
	err chan error
}

func newStdinFeed() *stdinFeed {
	f := &stdinFeed{ch: make(chan []byte, 64), err: make(chan error, 1)}
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
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

// connFeed mirrors the server's: a background goroutine reads conn so
// the main loop never blocks on the network.
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

type pending struct{ buf []byte }

func (p *pending) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		return 0, nil
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func main() {
	var server, hostUser, identityPath, passwd string
	var useKCP, dbg, forceTTY bool

	flag.StringVar(&server, "l", "", "server address, host:port")
	flag.StringVar(&hostUser, "u", os.Getenv("USER"), "remote username")
	flag.StringVar(&identityPath, "i", "", "path to private key for publickey auth (OpenSSH ed25519 PEM)")
	flag.StringVar(&passwd, "pw", "", "password (prompted interactively if empty and no -i given)")
	flag.BoolVar(&useKCP, "K", false, "dial over KCP (github.com/xtaci/kcp-go) instead of TCP")
	flag.BoolVar(&dbg, "d", false, "debug logging")
	flag.BoolVar(&forceTTY, "t", false, "force pty allocation even if stdout isn't a terminal")
	flag.Parse()

	if server == "" {
		flag.Usage()
		os.Exit(1)
	}

	Log, _ = logger.New(logger.LOG_USER|logger.LOG_DEBUG|logger.LOG_NOTICE|logger.LOG_ERR, "sshc")
	if dbg {
		log.SetOutput(Log)
	} else {
		log.SetOutput(ioutil.Discard)
	}

	var conn net.Conn
	var err error
	if useKCP {
		conn, err = transport.DialKCP(server, transport.Options{Cipher: transport.BlockCipherAES})
	} else {
		conn, err = transport.DialTCP(server)
	}
	if err != nil {
		log.Fatal("dial: ", err)
	}
	defer conn.Close()

	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || forceTTY
	var oldState *State
	if isTTY {
		oldState, err = MakeRaw(os.Stdin.Fd())
		if err != nil {
			log.Println("MakeRaw:", err)
			isTTY = false
		} else {
			defer Restore(os.Stdin.Fd(), oldState)
		}
	}

	cfg := sshcore.DefaultConfig()
	var remoteClosed bool
	cfg.Callbacks = &sshcore.Callbacks{
		Data: func(ch *channel.Channel, data []byte) {
			os.Stdout.Write(data)
		},
		ExtendedData: func(ch *channel.Channel, dataType uint32, data []byte) {
			os.Stderr.Write(data)
		},
		Closed: func(ch *channel.Channel) {
			remoteClosed = true
		},
	}

	sess, err := sshcore.NewClientSession(cfg)
	if err != nil {
		log.Fatal("NewClientSession: ", err)
	}

	var key *hostkeys.HostKey
	if identityPath != "" {
		data, err := ioutil.ReadFile(identityPath)
		if err != nil {
			log.Fatal("reading identity: ", err)
		}
		key, err = hostkeys.LoadPrivateKey(data)
		if err != nil {
			log.Fatal("parsing identity: ", err)
		}
	} else if passwd == "" {
		fmt.Fprint(os.Stderr, "password: ")
		b, err := ReadPassword(os.Stdin.Fd())
		fmt.Fprintln(os.Stderr)
		if err != nil {
			log.Fatal("reading password: ", err)
		}
		passwd = string(b)
	}

	feed := newConnFeed(conn)
	pend := &pending{}

	// Drive version exchange, KEXINIT, KEXDH, and NEWKEYS to completion
	// before touching stdin. AuthenticateWith{Password,Key} reject the
	// call with an error until the Encrypted state is reached, so it is
	// simply retried each round until it's accepted (meaning the request
	// has been queued).
	attempted := false
	for !sess.Authenticated() {
		select {
		case chunk := <-feed.ch:
			pend.buf = append(pend.buf, chunk...)
		case ferr := <-feed.err:
			log.Fatal("connection closed during handshake: ", ferr)
		}
		if _, err := sess.Read(pend); err != nil {
			log.Fatal("session read: ", err)
		}
		if _, err := sess.Write(conn); err != nil {
			log.Fatal("session write: ", err)
		}
		if !attempted {
			var aerr error
			if key != nil {
				aerr = sess.AuthenticateWithKey(hostUser, key)
			} else {
				aerr = sess.AuthenticateWithPassword(hostUser, passwd)
			}
			attempted = aerr == nil
		} else if sess.LastAuthOutcome() != nil {
			log.Fatalf("authentication rejected, remaining methods: %v", sess.LastAuthOutcome().RemainingMethods.Names())
		}
	}

	localID, err := sess.OpenChannel("session")
	if err != nil {
		log.Fatal("OpenChannel: ", err)
	}
	for {
		ch, ok := sess.Channels().Get(localID)
		if ok && ch.Confirmed {
			break
		}
		feedOnce(sess, feed, pend, conn)
	}

	if isTTY {
		cols, rows, _ := getSize()
		_ = sess.SendRequest(localID, "pty-req", false, encodePtyRequest("xterm-256color", uint32(cols), uint32(rows)))
		_ = sess.SendRequest(localID, "shell", false, nil)
	} else {
		_ = sess.SendRequest(localID, "shell", false, nil)
	}

	stdin := newStdinFeed()
	for !remoteClosed {
		select {
		case chunk := <-feed.ch:
			pend.buf = append(pend.buf, chunk...)
		case ferr := <-feed.err:
			_ = ferr
			return
		case chunk := <-stdin.ch:
			if _, err := sess.SendData(localID, chunk); err != nil {
				return
			}
		case serr := <-stdin.err:
			_ = serr
			_ = sess.SendEOF(localID)
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

func feedOnce(sess *sshcore.Session, feed *connFeed, pend *pending, conn net.Conn) {
	select {
	case chunk := <-feed.ch:
		pend.buf = append(pend.buf, chunk...)
	case ferr := <-feed.err:
		log.Fatal("connection closed: ", ferr)
	}
	if _, err := sess.Read(pend); err != nil {
		log.Fatal("session read: ", err)
	}
	if _, err := sess.Write(conn); err != nil {
		log.Fatal("session write: ", err)
	}
}

// getSize gets the terminal size using 'stty', the same portable
// fallback hkexsh.go's GetSize uses rather than an ioctl (which would
// need yet another per-OS variant).
func getSize() (cols, rows int, err error) {
	cmd := exec.Command("stty", "size")
	cmd.Stdin = os.Stdin
	out, err := cmd.Output()
	if err != nil {
		return 80, 24, err
	}
	n, serr := fmt.Sscanf(string(out), "%d %d\n", &rows, &cols)
	if n < 2 || rows <= 0 || cols <= 0 {
		return 80, 24, serr
	}
	return cols, rows, nil
}

// encodePtyRequest builds the pty-req type-specific data per RFC 4254
// §6.2: TERM string, character/pixel dimensions, and an empty encoded
// terminal modes string (no modes requested).
func encodePtyRequest(term string, cols, rows uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutString([]byte(term))
	buf.PutUint32(cols)
	buf.PutUint32(rows)
	buf.PutUint32(0)
	buf.PutUint32(0)
	buf.PutString(nil)
	return buf.Bytes()
}
