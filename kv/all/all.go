// Package all registers every built-in storage backend with package kv.
package all

import (
	_ "github.com/infodancer/shellauth/kv/filekv"
	_ "github.com/infodancer/shellauth/kv/memkv"
	_ "github.com/infodancer/shellauth/kv/rediskv"
	_ "github.com/infodancer/shellauth/kv/sqlitekv"
)
