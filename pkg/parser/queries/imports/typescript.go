package imports

// TSQueries contains tree-sitter query patterns for TypeScript import and
// re-export extraction.
//
// Every pattern is anchored at the statement node so each match carries
// both the bound name and the module source. Specifier-level patterns
// without the source are ambiguous once a file has several imports.
//
// Captures:
//   - @import.*   - import bindings (named, default, namespace, alias)
//   - @reexport.* - export ... from forms
const TSQueries = `
; Named imports: import { foo, bar as b } from './utils';
; One match per specifier, source included in each match.
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
