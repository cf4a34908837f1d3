package layout

// Target describes the ABI target triple and its pointer properties.
//
// Only x86_64-linux-gnu is implemented.
type Target struct {
	Triple     string // e.g. "x86_64-unknown-linux-gnu"
	DataLayout string
	PtrSize    int // bytes
	PtrAlign   int // bytes
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:     "x86_64-unknown-linux-gnu",
		DataLayout: "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128",
		PtrSize:    8,
		PtrAlign:   8,
	}
}
