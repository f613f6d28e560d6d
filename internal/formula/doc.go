// Package formula loads package formulas and builds their artifact catalogs.
//
// # Overview
//
// A formula describes one package: its metadata and one prebuilt artifact
// per supported platform. Each artifact carries a download URL, an expected
// digest, an optional detached-signature URL and an ordered list of install
// actions. The artifacts form a Catalog indexed by platform.Key; building a
// catalog rejects duplicate keys and malformed checksums, so a Catalog that
// exists is always well formed.
//
// # Formats
//
// Formulas are data, not code paths. The same schema can be written as
// Lua, YAML, TOML or JSON with comments (JSONC):
//
//	formula = {
//	  name = "changie",
//	  version = "1.7.0",
//	  artifacts = {
//	    {
//	      os = "linux", arch = "amd64",
//	      url = "https://github.com/miniscruff/changie/releases/download/v1.7.0/changie_1.7.0_linux_amd64.tar.gz",
//	      sha256 = "92519b7439bbfa544070c36514ee23fc80f0717b19d38463fbc1a479aba5651d",
//	      install = { { bin = "changie" } },
//	    },
//	  },
//	}
//
// Lua formulas run in a sandboxed gopher-lua VM with no os, io, module
// loading or debug access, a bounded call stack and a parse timeout. The
// host platform is deliberately not visible to formula code, so a catalog
// is the same no matter where it is evaluated.
//
// # Checksums
//
// A checksum is written "algo:hex" (sha256, sha512 or blake3) or as bare hex,
// which means sha256. The hex must match the algorithm's digest length
// exactly; odd-length or truncated values fail at load time.
package formula
