// Package auth implements RFC 4252 user authentication: the method
// bitset, the per-connection AuthRequest bookkeeping, and server-side
// password/publickey verification backends.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package auth

// Method is a bitset of authentication methods, mirroring the bitflags
// M in original_source/src/auth.rs (None/Password/PublicKey/Hostbased).
// It is monotonically non-increasing across a connection's auth attempts:
// the server only ever removes a method once it stops offering it.
type Method uint32

const (
	MethodNone Method = 1 << iota
	MethodPassword
	MethodPublicKey
	MethodHostbased
)

// AllMethods is the complete set a server may offer, matching
// auth::Methods::all() in original_source/src/server/mod.rs's
// Config::default().
const AllMethods = MethodPassword | MethodPublicKey

// String returns the wire name for a single method flag.
func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodPassword:
		return "password"
	case MethodPublicKey:
		return "publickey"
	case MethodHostbased:
		return "hostbased"
	default:
		return ""
	}
}

// FromName maps a wire method name back to its flag, or 0 if unknown.
func FromName(name string) Method {
	switch name {
	case "none":
		return MethodNone
	case "password":
		return MethodPassword
	case "publickey":
		return MethodPublicKey
	case "hostbased":
		return MethodHostbased
	default:
		return 0
	}
}

// Names expands a Method bitset into its wire name-list, in a stable order,
// for the "remaining methods" field of USERAUTH_FAILURE.
func (m Method) Names() []string {
	var out []string
	for _, flag := range []Method{MethodNone, MethodPassword, MethodPublicKey, MethodHostbased} {
		if m&flag != 0 {
			out = append(out, flag.String())
		}
	}
	return out
}

// Has reports whether m includes the given single flag.
func (m Method) Has(flag Method) bool { return m&flag != 0 }

// Remove clears flag from m. The server's auth dispatch does not call it;
// a failed attempt leaves the offered methods unchanged.
func (m Method) Remove(flag Method) Method { return m &^ flag }
