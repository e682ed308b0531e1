// Package config loads artifact entries from a configuration file.
//
// A configuration is an ordered list of entries, one per installable
// artifact. Three encodings are accepted, chosen by file extension:
//
//   - .json (the default): a JSON array of objects
//   - .yaml / .yml: the same document written as YAML
//   - .lua: a sandboxed Lua script assigning a global "artifacts" list
//
// All three are decoded through the same JSON path, so they share key names.
// Beyond JSON decoding no schema validation is done at load time: a missing
// field is reported by Entry.Require, and an unknown key by
// Entry.ValidateInstall, when the entry is actually consumed.
//
// # Example
//
//	[
//	  {
//	    "name": "embree",
//	    "platform": "linux",
//	    "arch": "x86_64",
//	    "url": "https://example.com/embree-4.3.3.x86_64.linux.tar.gz",
//	    "sha256": "8cca2d7e…",
//	    "target": "../embree",
//	    "strip_components": 1,
//	    "extract_skip": ["bin/*", "doc/*"]
//	  }
//	]
//
// Lua scripts see a read-only "platform" table (see package platform):
//
//	artifacts = {
//	  platform.when(platform.is_linux, {
//	    name = "embree", platform = "linux", url = "…", sha256 = "…", target = "embree",
//	  }),
//	}
package config
