package js

// ROUTE_TEXT is evaluated with the route element bound to `this`. It returns the
// rendered text the way a user sees it, with runs of whitespace collapsed.
var ROUTE_TEXT string = `
() => {
    var text = this.innerText || this.textContent || "";
    return text.trim().replace(/\s+/g, ' ');
}
`

// PAGE_READY reports whether the document finished parsing. Used before polling for
// the route element so a half loaded page is not queried.
var PAGE_READY string = `
() => document.readyState === "interactive" || document.readyState === "complete"
`
