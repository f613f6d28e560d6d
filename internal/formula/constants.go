package formula

import "time"

// Lua schema field names and globals
const (
	luaGlobalFormula  = "formula"
	luaFieldName      = "name"
	luaFieldDesc      = "desc"
	luaFieldHomepage  = "homepage"
	luaFieldVersion   = "version"
	luaFieldLicense   = "license"
	luaFieldPublicKey = "public_key"
	luaFieldArtifacts = "artifacts"
	luaFieldOS        = "os"
	luaFieldArch      = "arch"
	luaFieldURL       = "url"
	luaFieldSHA256    = "sha256"
	luaFieldChecksum  = "checksum"
	luaFieldSignature = "signature_url"
	luaFieldInstall   = "install"
	luaFieldBin       = "bin"
	luaFieldLibexec   = "libexec"
	luaFieldShare     = "share"
	luaFieldKind      = "kind"
	luaFieldSource    = "source"
	luaFieldTarget    = "target"
)

// Lua VM limits
const (
	luaCallStackSize    = 256
	luaRegistrySize     = 8 * 1024
	defaultParseTimeout = 5 * time.Second
)

const (
	// MaxFormulaSize bounds formula files read from disk.
	MaxFormulaSize = 1 << 20
	maxNameLength  = 64
)
