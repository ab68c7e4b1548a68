// Package extract pulls crawlable structure out of fetched HTML: the
// page title and the links worth following.
//
// Parsing goes through golang.org/x/net/html so malformed markup, the
// normal case on the open web, still yields links. Response bodies are
// decoded via their declared charset before parsing, links are
// resolved against the page URL, and only same-host http(s) links that
// pass the roster's follow and ignore patterns are offered back to the
// frontier.
package extract
