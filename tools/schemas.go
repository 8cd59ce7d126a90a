// JSON schemas advertised to the model for each tool.

package tools

func emptySchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}
}

func readFileSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Relative path to the file from workspace root",
			},
			"lines": map[string]any{
				"type":        "object",
				"description": "Optional line range to read",
				"properties": map[string]any{
					"start": map[string]any{"type": "integer", "description": "1-indexed start line", "minimum": 1},
					"end":   map[string]any{"type": "integer", "description": "1-indexed end line", "minimum": 1},
				},
			},
		},
		"required": []string{"path"},
	}
}

func searchCodeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query (case-insensitive substring match)",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of matches to return (1-50)",
				"minimum":     1,
				"maximum":     50,
				"default":     20,
			},
		},
		"required": []string{"query"},
	}
}

func listDirectorySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Starting path (relative to workspace root)",
				"default":     ".",
			},
			"max_depth": map[string]any{
				"type":        "integer",
				"description": "Maximum directory depth to traverse (0-10)",
				"minimum":     0,
				"maximum":     10,
				"default":     2,
			},
			"include_files": map[string]any{
				"type":        "boolean",
				"description": "Include files in results",
				"default":     true,
			},
			"include_hidden": map[string]any{
				"type":        "boolean",
				"description": "Include hidden files/directories",
				"default":     false,
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of entries to return (1-500)",
				"minimum":     1,
				"maximum":     500,
				"default":     200,
			},
		},
		"required": []string{},
	}
}

func createFileSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Relative path for the new file",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "File content",
				"default":     "",
			},
			"overwrite": map[string]any{
				"type":        "boolean",
				"description": "Allow overwriting existing files",
				"default":     false,
			},
			"refresh_context": map[string]any{
				"type":        "boolean",
				"description": "Refresh project context after creation",
				"default":     false,
			},
		},
		"required": []string{"path"},
	}
}

func editFileSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Relative path to the file",
			},
			"operations": map[string]any{
				"type":        "array",
				"description": "Edit operations applied in order. replace: literal find/replace (first match unless replace_all or count). replace_range: replace 1-indexed lines start..end with text.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type":        "string",
							"enum":        []string{OpReplace, OpReplaceRange},
							"description": "Operation kind",
						},
						"find":        map[string]any{"type": "string", "description": "Text to find (literal string match)"},
						"replace":     map[string]any{"type": "string", "description": "Replacement text"},
						"replace_all": map[string]any{"type": "boolean", "description": "Replace all occurrences (default: false, replaces first only)"},
						"count":       map[string]any{"type": "integer", "description": "Number of replacements to make (ignored if replace_all is true)", "minimum": 1},
						"start":       map[string]any{"type": "integer", "description": "1-indexed start line", "minimum": 1},
						"end":         map[string]any{"type": "integer", "description": "1-indexed end line", "minimum": 1},
						"text":        map[string]any{"type": "string", "description": "Replacement text for the line range"},
					},
					"required": []string{"type"},
				},
			},
			"refresh_context": map[string]any{
				"type":        "boolean",
				"description": "Refresh project context after edit",
				"default":     false,
			},
		},
		"required": []string{"path", "operations"},
	}
}

func refreshContextSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of files to scan (1-100)",
				"minimum":     1,
				"maximum":     100,
				"default":     20,
			},
			"include_metadata": map[string]any{
				"type":        "boolean",
				"description": "Include file modification times",
				"default":     false,
			},
			"include_hidden": map[string]any{
				"type":        "boolean",
				"description": "Include hidden files (starting with .)",
				"default":     false,
			},
		},
		"required": []string{},
	}
}
