package extension

import "os"

// osExit is a package-level indirection over os.Exit so the default
// Exiter can be swapped in tests without every caller having to thread
// one through.
var osExit = os.Exit
