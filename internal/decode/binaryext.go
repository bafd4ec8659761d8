package decode

import (
	"path/filepath"
	"strings"
)

// binaryExtensions lists well-known binary formats that skip content sniffing
// entirely. Empty files with these extensions still read as empty text.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".o": true, ".obj": true,
	".zip": true, ".gz": true, ".tar": true, ".rar": true, ".7z": true,
	".xz": true, ".bz2": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".tiff": true, ".ico": true, ".webp": true,
	".mp3": true, ".wav": true, ".ogg": true, ".flac": true, ".aac": true,
	".wma": true,
	".mp4": true, ".avi": true, ".mkv": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".class": true, ".pyc": true, ".pyd": true, ".pyo": true,
	".db": true, ".sqlite": true, ".mdb": true,
	".ttf": true, ".woff": true, ".woff2": true, ".eot": true, ".otf": true,
}

// IsBinaryExtension reports whether fileName carries a well-known binary
// extension.
func IsBinaryExtension(fileName string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(fileName))]
}
