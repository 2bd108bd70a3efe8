// Package api serves the read side: health, trade listing with filters,
// and CSV export. Query parameters are strictly validated so typos fail
// loudly instead of silently returning the unfiltered dataset.
package api
