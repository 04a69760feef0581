// Package paths provides the on-disk layout of the extension host.
//
// # Directory Structure
//
//	<root>/
//	  ├── extensions/    (one directory per installed extension)
//	  │   └── <id>/
//	  ├── storage/       (extension key/value data)
//	  ├── staging/       (archives unpacked during install)
//	  └── inbox/         (drop directory watched for new packages)
//
// # Usage
//
//	layout := paths.New("/var/lib/exthost")
//	dir, err := layout.Extension("clock") // /var/lib/exthost/extensions/clock
package paths
