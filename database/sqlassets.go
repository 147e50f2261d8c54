package sqlassets

import _ "embed"

//go:embed schema/cms/pages.sql
var PagesSQL string

//go:embed schema/cms/content.sql
var ContentSQL string

//go:embed schema/cms/sites.sql
var SitesSQL string
