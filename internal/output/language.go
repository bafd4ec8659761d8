package output

import (
	"path/filepath"
	"strings"
)

// defaultLanguageTag labels content whose extension has no known language.
const defaultLanguageTag = "text"

// extensionLanguages maps lower-case file extensions to fence language tags.
var extensionLanguages = map[string]string{
	".c": "c", ".h": "c",
	".cpp": "cpp", ".hpp": "cpp", ".cc": "cpp", ".cxx": "cpp", ".c++": "cpp",

	".html": "html", ".htm": "html", ".xhtml": "html",
	".css": "css", ".scss": "scss", ".sass": "sass", ".less": "less",
	".js": "javascript", ".jsx": "jsx", ".ts": "typescript", ".tsx": "tsx",

	".py": "python", ".pyw": "python", ".pyx": "python", ".pxd": "python", ".pyi": "python",
	".ipynb": "jupyter",

	".java": "java", ".kt": "kotlin", ".kts": "kotlin", ".scala": "scala", ".groovy": "groovy",

	".cs": "csharp", ".vb": "vb", ".fs": "fsharp",

	".rb": "ruby", ".php": "php",

	".go": "go", ".rs": "rust", ".swift": "swift",

	".sh": "bash", ".bash": "bash", ".zsh": "bash",
	".ps1": "powershell", ".bat": "batch", ".cmd": "batch",

	".md": "markdown", ".markdown": "markdown",
	".json": "json", ".yaml": "yaml", ".yml": "yaml", ".xml": "xml",
	".toml": "toml", ".ini": "ini", ".cfg": "ini", ".conf": "ini",
	".csv": "csv", ".tsv": "tsv",

	".sql": "sql", ".graphql": "graphql", ".gql": "graphql",
	".tex": "latex", ".dockerfile": "dockerfile", ".gitignore": "gitignore",
	".r": "r", ".dart": "dart", ".lua": "lua",
	".pl": "perl", ".pm": "perl", ".hs": "haskell",
	".txt": "text",
}

// LanguageForFile returns the fence language tag for a file name.
func LanguageForFile(fileName string) string {
	extension := strings.ToLower(filepath.Ext(fileName))
	if language, known := extensionLanguages[extension]; known {
		return language
	}
	return defaultLanguageTag
}
