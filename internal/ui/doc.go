// Package ui implements the job monitor behind `dlapi watch` using bubbletea's Elm architecture.
//
// The monitor has two views:
//  1. [JobListView] : Every job known to the server, refreshed on a fixed interval
//  2. [DetailView] : One job with a progress bar and its video and artifact references
//
// The [Model] implements the standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Polling is driven by tick messages so a slow or unreachable server never blocks rendering.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, d, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
