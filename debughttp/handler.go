// Package debughttp exposes a read-only HTTP dump of a broker's routing
// table and face registry, for operators to eyeball while debugging a
// running kelpd. It carries no authentication and is off by default.
package debughttp

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kelp-mesh/kelp"
)

// Version is reported in the dump so a captured report is traceable back
// to the binary that produced it.
var Version = "v0.1.0"

// Handler returns a gin engine serving /debug/tables, dumping the
// supplied Tables' current Snapshot as plain text.
func Handler(tables *kelp.Tables) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/debug/tables", func(c *gin.Context) {
		c.Header("Server", fmt.Sprintf("kelpd-debug %s", Version))
		c.String(http.StatusOK, dumpSnapshot(tables.Debug()))
	})
	return engine
}

func dumpSnapshot(snap kelp.Snapshot) string {
	var b strings.Builder
	b.WriteString("kelp debug dump\n")
	b.WriteString("===============\n\n")

	b.WriteString("Faces:\n")
	faces := append([]kelp.FaceSnapshot(nil), snap.Faces...)
	sort.Slice(faces, func(i, j int) bool { return faces[i].ID < faces[j].ID })
	for _, f := range faces {
		b.WriteString("- face ")
		b.WriteString(strconv.FormatUint(f.ID, 10))
		b.WriteString(" (whatami=")
		b.WriteString(whatamiString(f.WhatAmI))
		b.WriteString(")\n")
		for _, s := range f.Subs {
			b.WriteString("    sub ")
			b.WriteString(s)
			b.WriteByte('\n')
		}
		for _, q := range f.Queryables {
			b.WriteString("    qabl ")
			b.WriteString(q)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nResources:\n")
	resources := append([]kelp.ResourceSnapshot(nil), snap.Resources...)
	sort.Slice(resources, func(i, j int) bool { return resources[i].Name < resources[j].Name })
	for _, r := range resources {
		b.WriteString("- ")
		b.WriteString(r.Name)
		b.WriteString(fmt.Sprintf(" (matches=%d routes=%d faces=%d)\n", r.MatchCount, r.RouteCount, len(r.ContextFace)))
	}

	return b.String()
}

func whatamiString(w kelp.WhatAmI) string {
	var kinds []string
	if w&kelp.WhatAmIBroker != 0 {
		kinds = append(kinds, "broker")
	}
	if w&kelp.WhatAmIRouter != 0 {
		kinds = append(kinds, "router")
	}
	if w&kelp.WhatAmIPeer != 0 {
		kinds = append(kinds, "peer")
	}
	if w&kelp.WhatAmIClient != 0 {
		kinds = append(kinds, "client")
	}
	if len(kinds) == 0 {
		return "unknown"
	}
	return strings.Join(kinds, "|")
}
