package native

import (
	"strings"
)

// Library file name per OS family. Names follow the cargo cdylib output.
var libraryFiles = map[string]func(name string) string{
	"darwin":  func(name string) string { return "lib" + name + ".dylib" },
	"windows": func(name string) string { return name + ".dll" },
	"linux":   soName,
	"freebsd": soName,
	"netbsd":  soName,
	"aix":     soName,
	"solaris": soName,
	"illumos": soName,
}

func soName(name string) string {
	return "lib" + name + ".so"
}

// LibraryPath resolves the shared library for goos under dir.
//
// On windows the result uses backslashes and never starts with one, so a
// URL-style "/C:/build" directory becomes "C:\build".
func LibraryPath(dir, name, goos string) (string, error) {
	file, ok := libraryFiles[goos]
	if !ok {
		return "", &UnsupportedPlatformError{GOOS: goos}
	}

	path := file(name)
	if dir != "" {
		path = strings.TrimRight(dir, "/\\") + "/" + path
	}

	if goos == "windows" {
		path = strings.ReplaceAll(path, "/", `\`)
		path = strings.TrimPrefix(path, `\`)
	}

	return path, nil
}
