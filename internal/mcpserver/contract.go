package mcpserver

// FormatContractURI is the MCP resource URI of FormatContract.
const FormatContractURI = "unwebarchiver://format"

// FormatContract describes how archives are addressed and projected, for
// LLM consumers of the tools.
const FormatContract = `# Web Archive Library Contract

Archives are Safari ` + "`" + `.webarchive` + "`" + ` files: binary property lists holding one
page and the resources it loaded.

## Paths

- Archive paths are relative to the library root, use forward slashes and end
  with ` + "`" + `.webarchive` + "`" + ` (e.g. ` + "`" + `reading/2025/article.webarchive` + "`" + `).
- ` + "`" + `import_archive` + "`" + ` appends the extension when it is missing.

## Resources

Each archive is projected to a list of resources:

| Position | Resource |
|----------|----------|
| 0        | main resource (the page itself) |
| 1..N     | subresources, in the order the archive stores them |

Every resource carries:

- ` + "`" + `url` + "`" + ` as stored in the archive
- ` + "`" + `mime_type` + "`" + `, and ` + "`" + `text_encoding_name` + "`" + ` when the archive names one
- ` + "`" + `domain` + "`" + `: the URL host including any port, or ` + "`" + `Data URL` + "`" + ` for URLs with
  no host such as ` + "`" + `data:` + "`" + ` URIs
- ` + "`" + `file_name` + "`" + `: the last non-empty path segment, or ` + "`" + `/` + "`" + `

Embedded frames are nested archives under ` + "`" + `subframe_archives` + "`" + `; their resources
are not numbered in the parent.

## Tools

1. **list_archives** pages through the library, optionally by domain.
2. **inspect_archive** returns the projected resources of one archive.
3. **search_resources** runs full-text search over the visible text of
   HTML and other text resources.
4. **read_resource** returns one resource: text inline, binary as a blob.
5. **export_archive** renders an archive as Markdown or print-ready HTML.
6. **import_archive** downloads an archive over HTTP(S) or accepts base64
   data and adds it to the library.

## Errors

Archives that are not binary property lists, or that lack
` + "`" + `WebMainResource` + "`" + ` or a required resource key, are rejected with a message naming
the offending key path (e.g. ` + "`" + `WebSubresources[1].WebResourceMIMEType` + "`" + `).
`
