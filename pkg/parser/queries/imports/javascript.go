package imports

// JSQueries contains tree-sitter query patterns for JavaScript import and
// re-export extraction. Same shapes as the TypeScript queries; the JS
// grammar has no type-only forms, and `import type` in TS parses as a
// plain named import for our purposes.
const JSQueries = `
; Named imports: import { foo, bar as b } from './utils';
(import_statement
  (import_clause
    (named_imports
      (import_specifier
        name: (identifier) @import.named
        alias: (identifier)? @import.alias
      )
    )
  )
  source: (string (string_fragment) @import.source)
)

; Default import: import React from 'react';
(import_statement
  (import_clause
    (identifier) @import.default
  )
  source: (string (string_fragment) @import.source)
)

; Namespace import: import * as utils from './utils';
(import_statement
  (import_clause
    (namespace_import
      (identifier) @import.namespace
    )
  )
  source: (string (string_fragment) @import.source)
)

; Re-export all: export * from './other';
(export_statement
  "*"
  source: (string (string_fragment) @reexport.all)
)

; Named re-export: export { foo, bar } from './other';
(export_statement
  (export_clause
    (export_specifier
      name: (identifier) @reexport.named
    )
  )
  source: (string (string_fragment) @reexport.source)
)
`
