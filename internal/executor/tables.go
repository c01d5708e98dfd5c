package executor

import "github.com/dohr-michael/ozymandias/internal/capability"

// binaryCapabilities maps a binary basename to the capability tag the
// calling agent must hold before it may be spawned. Pinned verbatim
// from the original executor's BINARY_CAPABILITIES table.
var binaryCapabilities = map[string]capability.Tag{
	"pkg": capability.ExecPkg, "apt": capability.ExecPkg, "apt-get": capability.ExecPkg,
	"apt-cache": capability.ExecPkg, "dpkg": capability.ExecPkg, "dpkg-deb": capability.ExecPkg,

	"git": capability.ExecGit,

	"qemu-system-x86_64": capability.ExecQemu, "qemu-system-aarch64": capability.ExecQemu,
	"qemu-system-arm": capability.ExecQemu, "qemu-img": capability.ExecQemu,

	"xorriso": capability.ExecISO, "mkisofs": capability.ExecISO,
	"isoinfo": capability.ExecISO, "genisoimage": capability.ExecISO,

	"apktool": capability.ExecAPK, "jadx": capability.ExecAPK, "aapt": capability.ExecAPK,
	"aapt2": capability.ExecAPK, "zipalign": capability.ExecAPK, "apksigner": capability.ExecAPK,

	"docker": capability.ExecDocker, "podman": capability.ExecDocker,

	"bash": capability.ExecShell, "sh": capability.ExecShell, "zsh": capability.ExecShell,

	"python": capability.ExecPython, "python3": capability.ExecPython,
	"pip": capability.ExecPython, "pip3": capability.ExecPython,

	"make": capability.ExecBuild, "cmake": capability.ExecBuild, "gradle": capability.ExecBuild,
	"gradlew": capability.ExecBuild, "ninja": capability.ExecBuild, "meson": capability.ExecBuild,

	"binwalk": capability.ExecAnalyze, "file": capability.ExecAnalyze, "strings": capability.ExecAnalyze,
	"hexdump": capability.ExecAnalyze, "objdump": capability.ExecAnalyze, "readelf": capability.ExecAnalyze,
	"nm": capability.ExecAnalyze, "ldd": capability.ExecAnalyze,

	"tar": capability.ExecCompress, "gzip": capability.ExecCompress, "bzip2": capability.ExecCompress,
	"xz": capability.ExecCompress, "zip": capability.ExecCompress, "unzip": capability.ExecCompress,
	"7z": capability.ExecCompress,
}

// networkCommands is the set of binary basenames classified as
// network-capable, pinned verbatim from NETWORK_COMMANDS.
var networkCommands = map[string]struct{}{
	"curl": {}, "wget": {}, "ssh": {}, "scp": {}, "rsync": {}, "nc": {}, "netcat": {},
	"ping": {}, "traceroute": {}, "nmap": {}, "telnet": {}, "ftp": {}, "sftp": {},
}

// binaryCapability returns the required capability for basename and
// whether one is declared.
func binaryCapability(basename string) (capability.Tag, bool) {
	tag, ok := binaryCapabilities[basename]
	return tag, ok
}

// isNetworkCommand reports whether basename is in the network set.
func isNetworkCommand(basename string) bool {
	_, ok := networkCommands[basename]
	return ok
}
