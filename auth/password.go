package auth

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"io/ioutil"
	"os/user"
	"runtime"
	"strings"

	"github.com/jameskeane/bcrypt"
	passlib "gopkg.in/hlandau/passlib.v1"

	"blitter.com/go/sshcore/logger"
)

// PasswordCtx carries the filesystem/user-lookup seams password
// verification needs, dependency-injected the way the teacher's AuthCtx
// keeps tests hermetic (no real /etc/shadow read in unit tests).
type PasswordCtx struct {
	Reader     func(string) ([]byte, error)
	UserLookup func(string) (*user.User, error)
}

// NewPasswordCtx returns a PasswordCtx wired to the real filesystem and
// system user database.
func NewPasswordCtx() *PasswordCtx {
	return &PasswordCtx{Reader: ioutil.ReadFile, UserLookup: user.Lookup}
}

func (ctx *PasswordCtx) reader() func(string) ([]byte, error) {
	if ctx.Reader != nil {
		return ctx.Reader
	}
	return ioutil.ReadFile
}

func (ctx *PasswordCtx) lookup() func(string) (*user.User, error) {
	if ctx.UserLookup != nil {
		return ctx.UserLookup
	}
	return user.Lookup
}

// VerifySystemPassword checks a password against the system shadow file
// (or BSD master.passwd), kept near-verbatim from the teacher's VerifyPass.
// Auxiliary expiry-policy fields are not inspected.
func VerifySystemPassword(ctx *PasswordCtx, username, password string) (bool, error) {
	passlib.UseDefaults(passlib.Defaults20180601)
	var pwFileName string
	switch runtime.GOOS {
	case "linux":
		pwFileName = "/etc/shadow"
	case "freebsd":
		pwFileName = "/etc/master.passwd"
	default:
		return false, errors.New("auth: unsupported platform for system password verification")
	}

	data, err := ctx.reader()(pwFileName)
	if err != nil {
		return false, err
	}
	lines := strings.Split(string(data), "\n")
	var hash string
	for _, line := range lines {
		fields := strings.Split(line, ":")
		if len(fields) >= 2 && fields[0] == username {
			hash = fields[1]
			break
		}
	}
	if hash == "" {
		return false, errors.New("auth: no shadow entry for user")
	}
	if err := passlib.VerifyNoUpgrade(password, hash); err != nil {
		return false, err
	}
	return true, nil
}

// VerifyLocalPassword checks user login information against a local
// bcrypt-hashed passwd file (username:salt:hash CSV), kept from the
// teacher's AuthUserByPasswd including its dummy-record anti-enumeration
// technique and post-use buffer scrub.
func VerifyLocalPassword(ctx *PasswordCtx, username, password, fname string) bool {
	data, err := ctx.reader()(fname)
	if err != nil {
		logger.LogErr("auth: cannot read local passwd file: " + fname)
		return false
	}
	defer scrub(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = ':'
	r.Comment = '#'
	r.FieldsPerRecord = 3 // username:salt:hash

	lookupUser := username
	valid := false
	for {
		record, rerr := r.Read()
		if rerr == io.EOF {
			// Dummy record when the user isn't found, so a failed lookup
			// costs the same bcrypt work as a real one (no user-enumeration
			// timing oracle).
			record = []string{
				"$nosuchuser$",
				"$2a$12$l0coBlRDNEJeQVl6GdEPbU",
				"$2a$12$l0coBlRDNEJeQVl6GdEPbUC/xmuOANvqgmrMVum6S4i.EXPgnTXy6",
			}
			lookupUser = "$nosuchuser$"
			rerr = nil
		}
		if rerr != nil {
			return false
		}
		if lookupUser == record[0] {
			hashed, herr := bcrypt.Hash(password, record[1])
			if herr == nil && hashed == record[2] && lookupUser != "$nosuchuser$" {
				valid = true
			}
			break
		}
	}

	if _, err := ctx.lookup()(username); err != nil {
		valid = false
	}
	return valid
}

func scrub(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
