package handlers

import (
	"encoding/json"
	"net/http"
)

type schema = map[string]interface{}

func param(name, in, description string, required bool, typ string) schema {
	return schema{
		"name":        name,
		"in":          in,
		"description": description,
		"required":    required,
		"schema":      schema{"type": typ},
	}
}

func jsonBody(ref string) schema {
	return schema{
		"required": true,
		"content":  schema{"application/json": schema{"schema": schema{"$ref": "#/components/schemas/" + ref}}},
	}
}

func jsonResponse(description string, s schema) schema {
	return schema{
		"description": description,
		"content":     schema{"application/json": schema{"schema": s}},
	}
}

func ref(name string) schema {
	return schema{"$ref": "#/components/schemas/" + name}
}

func arrayOf(name string) schema {
	return schema{"type": "array", "items": ref(name)}
}

var errorResponses = schema{
	"400": jsonResponse("Validation error, invalid discriminator or invalid parameter", ref("Error")),
	"404": jsonResponse("Referenced resource not found", ref("Error")),
	"409": jsonResponse("Conflict", ref("Error")),
	"500": jsonResponse("Storage error", ref("Error")),
}

func withErrors(ok schema, okStatus string) schema {
	responses := schema{okStatus: ok}
	for status, r := range errorResponses {
		responses[status] = r
	}
	return responses
}

func listCreate(tag, item, createBody string) schema {
	return schema{
		"get": schema{
			"tags":      []string{tag},
			"summary":   "List " + tag,
			"responses": withErrors(jsonResponse("Successful response", arrayOf(item)), "200"),
		},
		"post": schema{
			"tags":        []string{tag},
			"summary":     "Create " + item,
			"requestBody": jsonBody(createBody),
			"responses":   withErrors(jsonResponse("Created", ref(item)), "201"),
		},
	}
}

func openAPIDocument() schema {
	idParam := param("id", "path", "Numeric id", true, "integer")

	return schema{
		"openapi": "3.0.0",
		"info": schema{
			"title":       "Precipitation Platform API",
			"description": "Field reports of rain and snow, instrument breakages and time-bucketed precipitation statistics",
			"version":     "1.0.0",
		},
		"servers": []schema{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": schema{
			"/api/reports": schema{
				"get": schema{
					"tags":    []string{"reports"},
					"summary": "List reports, newest first",
					"parameters": []schema{
						param("site_id", "query", "Filter by site", false, "integer"),
						param("user_id", "query", "Filter by reporting user", false, "integer"),
						param("type", "query", "regular or rotura", false, "string"),
						param("precipitation", "query", "Precipitation kind, e.g. lluvia", false, "string"),
						param("year", "query", "Calendar year of the report date", false, "integer"),
						param("page", "query", "Page number (default: 1)", false, "integer"),
						param("limit", "query", "Records per page (default: 50, max: 500)", false, "integer"),
					},
					"responses": withErrors(jsonResponse("Successful response", ref("ReportPage")), "200"),
				},
				"post": schema{
					"tags":        []string{"reports"},
					"summary":     "Create a report with its regular or rotura detail in one transaction",
					"requestBody": jsonBody("CreateReport"),
					"responses":   withErrors(jsonResponse("Created", ref("Report")), "201"),
				},
			},
			"/api/reports/years": schema{
				"get": schema{
					"tags":    []string{"reports"},
					"summary": "Years holding regular measurements, newest first",
					"responses": schema{"200": jsonResponse("Successful response", schema{
						"type":       "object",
						"properties": schema{"years": schema{"type": "array", "items": schema{"type": "integer"}}},
					})},
				},
			},
			"/api/reports/{id}": schema{
				"parameters": []schema{idParam},
				"get": schema{
					"tags":      []string{"reports"},
					"summary":   "Get a report with its detail",
					"responses": withErrors(jsonResponse("Successful response", ref("Report")), "200"),
				},
				"put": schema{
					"tags":        []string{"reports"},
					"summary":     "Update note, site and, for regular reports, amount",
					"requestBody": jsonBody("UpdateReport"),
					"responses":   withErrors(jsonResponse("Successful response", ref("Report")), "200"),
				},
				"delete": schema{
					"tags":      []string{"reports"},
					"summary":   "Delete a report and its detail",
					"responses": withErrors(schema{"description": "Deleted"}, "204"),
				},
			},
			"/api/histogram": schema{
				"get": schema{
					"tags":    []string{"aggregation"},
					"summary": "Sum regular measurements per day, month or year",
					"parameters": []schema{
						param("type", "query", "Granularity: day, month or year", true, "string"),
						param("precipitation", "query", "Precipitation kind, e.g. lluvia", true, "string"),
						param("year", "query", "Restrict to a calendar year", false, "integer"),
						param("month", "query", "Restrict to a month (1-12)", false, "integer"),
					},
					"responses": func() schema {
						r := withErrors(jsonResponse("Ascending buckets; unit id in the X-Unit-ID header", arrayOf("HistogramBucket")), "200")
						r["422"] = jsonResponse("Measurements use more than one unit of measure", ref("Error"))
						return r
					}(),
				},
			},
			"/api/zones/totals": schema{
				"get": schema{
					"tags":      []string{"aggregation"},
					"summary":   "Accumulated amount of every zone",
					"responses": withErrors(jsonResponse("Successful response", arrayOf("ZoneTotal")), "200"),
				},
			},
			"/api/zones/{id}/total": schema{
				"parameters": []schema{idParam},
				"get": schema{
					"tags":      []string{"aggregation"},
					"summary":   "Accumulated amount of one zone with its per-site breakdown",
					"responses": withErrors(jsonResponse("Successful response", ref("ZoneAccumulation")), "200"),
				},
			},
			"/api/zones":          listCreate("zones", "Zone", "CreateZone"),
			"/api/sites":          listCreate("sites", "Site", "CreateSite"),
			"/api/precipitations": listCreate("precipitations", "PrecipitationKind", "PrecipitationKind"),
			"/api/units":          listCreate("units", "UnitOfMeasure", "UnitOfMeasure"),
			"/api/instruments":    listCreate("instruments", "Instrument", "Instrument"),
			"/api/samples":        listCreate("samples", "Sample", "Sample"),
			"/api/zones/{id}": schema{
				"parameters": []schema{idParam},
				"get": schema{
					"tags":      []string{"zones"},
					"summary":   "Get a zone",
					"responses": withErrors(jsonResponse("Successful response", ref("Zone")), "200"),
				},
				"delete": schema{
					"tags":      []string{"zones"},
					"summary":   "Delete a zone with its sites and their reports",
					"responses": withErrors(schema{"description": "Deleted"}, "204"),
				},
			},
			"/api/zones/sites": schema{
				"get": schema{
					"tags":      []string{"zones"},
					"summary":   "List zones with their sites",
					"responses": withErrors(jsonResponse("Successful response", schema{"type": "array", "items": schema{"type": "object"}}), "200"),
				},
			},
			"/api/zones/locality/{locality}": schema{
				"parameters": []schema{param("locality", "path", "Zone locality", true, "string")},
				"get": schema{
					"tags":      []string{"zones"},
					"summary":   "Find a zone by locality",
					"responses": withErrors(jsonResponse("Successful response", ref("Zone")), "200"),
				},
			},
			"/api/sites/{id}": schema{
				"parameters": []schema{idParam},
				"get": schema{
					"tags":      []string{"sites"},
					"summary":   "Get a site",
					"responses": withErrors(jsonResponse("Successful response", ref("Site")), "200"),
				},
			},
			"/health": schema{
				"get": schema{
					"summary":   "Liveness probe",
					"responses": schema{"200": schema{"description": "API is running"}},
				},
			},
			"/ready": schema{
				"get": schema{
					"summary": "Readiness probe",
					"responses": schema{
						"200": schema{"description": "Store reachable"},
						"503": schema{"description": "Store unavailable"},
					},
				},
			},
			"/metrics": schema{
				"get": schema{
					"summary": "Prometheus metrics",
					"responses": schema{"200": schema{
						"description": "Prometheus metrics in text format",
						"content":     schema{"text/plain": schema{"schema": schema{"type": "string"}}},
					}},
				},
			},
		},
		"components": schema{"schemas": componentSchemas()},
	}
}

func object(props schema, required ...string) schema {
	s := schema{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var (
	integer  = schema{"type": "integer"}
	number   = schema{"type": "number"}
	str      = schema{"type": "string"}
	nullable = func(typ string) schema { return schema{"type": typ, "nullable": true} }
	dateTime = schema{"type": "string", "format": "date-time"}
)

func componentSchemas() schema {
	return schema{
		"Error": object(schema{
			"kind":    schema{"type": "string", "enum": []string{"validation_error", "invalid_discriminator", "invalid_parameter", "not_found", "conflict", "mixed_units", "storage_error"}},
			"error":   str,
			"message": str,
			"code":    integer,
			"field":   str,
		}, "kind", "error", "message", "code"),
		"CreateReport": object(schema{
			"date":              schema{"type": "string", "format": "date"},
			"type":              schema{"type": "string", "enum": []string{"regular", "rotura"}},
			"note":              str,
			"image":             str,
			"audio":             str,
			"user_id":           integer,
			"instrument_id":     integer,
			"precipitation_id":  integer,
			"site_id":           integer,
			"amount":            schema{"oneOf": []schema{number, str}, "description": "Required for regular reports; 0 <= amount < 1e9, at most 3 decimals"},
			"unit_id":           integer,
			"united_measure_id": schema{"type": "integer", "description": "Alias of unit_id"},
			"sample_id":         integer,
			"damage":            schema{"type": "string", "description": "Required for rotura reports"},
		}, "date", "type", "user_id", "instrument_id", "precipitation_id", "site_id"),
		"UpdateReport": object(schema{
			"note":           str,
			"site_id":        integer,
			"report_regular": object(schema{"amount": schema{"oneOf": []schema{number, str}}}),
		}),
		"Report": object(schema{
			"id":                  integer,
			"date":                schema{"type": "string", "format": "date"},
			"note":                nullable("string"),
			"image":               nullable("string"),
			"audio":               nullable("string"),
			"type":                str,
			"user_id":             integer,
			"instrument_id":       integer,
			"precipitation_id":    integer,
			"site_id":             integer,
			"report_regular":      schema{"nullable": true, "allOf": []schema{object(schema{"id": integer, "amount": number, "unit_id": integer, "sample_id": nullable("integer")})}},
			"breakage_instrument": schema{"nullable": true, "allOf": []schema{object(schema{"id": integer, "damage": str})}},
			"created_at":          dateTime,
			"updated_at":          dateTime,
		}),
		"ReportPage": object(schema{
			"data":        arrayOf("Report"),
			"total":       integer,
			"page":        integer,
			"limit":       integer,
			"total_pages": integer,
		}),
		"HistogramBucket":   object(schema{"label": str, "value": number}),
		"ZoneTotal":         object(schema{"id": integer, "locality": str, "total_accumulated": number, "site_count": integer}),
		"ZoneAccumulation":  object(schema{"id": integer, "locality": str, "total_accumulated": number, "site_count": integer, "sites": schema{"type": "array", "items": object(schema{"site_id": integer, "latitude": number, "longitude": number, "site_total": number, "report_count": integer})}}),
		"Zone":              object(schema{"id": integer, "locality": str, "created_at": dateTime, "updated_at": dateTime}),
		"CreateZone":        object(schema{"locality": str}, "locality"),
		"Site":              object(schema{"id": integer, "latitude": number, "longitude": number, "zone_id": integer, "precipitation_id": integer, "locality": str, "precipitation_type": str}),
		"CreateSite":        object(schema{"latitude": number, "longitude": number, "zone_id": integer, "precipitation_id": integer}, "latitude", "longitude", "zone_id", "precipitation_id"),
		"PrecipitationKind": object(schema{"id": integer, "type": str}, "type"),
		"UnitOfMeasure":     object(schema{"id": integer, "value_measure": number, "abbreviation": str}, "abbreviation"),
		"Instrument":        object(schema{"id": integer, "name": str, "brand": str, "model": str, "unit_id": integer, "precipitation_id": integer}, "name", "unit_id", "precipitation_id"),
		"Sample":            object(schema{"id": integer, "elevation": nullable("number"), "created_at": dateTime}),
	}
}

// OpenAPISpec returns the OpenAPI 3.0 document for the Precipitation Platform API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}
