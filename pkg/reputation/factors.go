package reputation

// ageScore scores package age from its creation date. npm exposes
// time.created directly; PyPI has no creation date but publishes a
// releases map keyed by version, whose earliest upload_time serves as a
// proxy. Missing or malformed dates return the neutral 0.5, matching the
// original service's error-as-neutral policy.
func ageScore(metadata map[string]any) float64 {
	created, ok := extractCreatedDate(metadata)
	if !ok {
		return 0.5
	}
	t, ok := parseTime(created)
	if !ok {
		return 0.5
	}
	return byAgeDays(daysSince(t))
}

func extractCreatedDate(metadata map[string]any) (string, bool) {
	if timeField, ok := asMap(metadata["time"]); ok {
		if created, ok := asString(timeField["created"]); ok {
			return created, true
		}
	}
	if releases, ok := asMap(metadata["releases"]); ok {
		earliest := ""
		for _, v := range releases {
			entries, ok := v.([]any)
			if !ok || len(entries) == 0 {
				continue
			}
			entry, ok := asMap(entries[0])
			if !ok {
				continue
			}
			uploaded, ok := asString(entry["upload_time"])
			if !ok {
				continue
			}
			if earliest == "" || uploaded < earliest {
				earliest = uploaded
			}
		}
		if earliest != "" {
			return earliest, true
		}
	}
	return "", false
}

func byAgeDays(days float64) float64 {
	switch {
	case days < 30:
		return 0.2
	case days < 90:
		return 0.5
	case days < 365:
		return 0.7
	case days < 730:
		return 0.9
	default:
		return 1.0
	}
}

// downloadsScore scores weekly download volume. Neither registry's
// package-metadata endpoint carries this directly (npm requires a
// separate downloads API call the Scorer does not make; PyPI's JSON API
// never exposes it), so only an explicit "downloads" field triggers a
// non-neutral score — present for forward compatibility with a future
// caller that merges it in.
func downloadsScore(metadata map[string]any) float64 {
	weekly, ok := asFloat(metadata["downloads"])
	if !ok {
		return 0.5
	}
	switch {
	case weekly < 100:
		return 0.2
	case weekly < 1000:
		return 0.5
	case weekly < 10000:
		return 0.7
	case weekly < 100000:
		return 0.9
	default:
		return 1.0
	}
}

// authorScore rewards organization/verified publishers and packages with
// multiple maintainers over a bare named author, and bare named authors
// over no author information at all.
func authorScore(metadata map[string]any) float64 {
	var authorName string
	if author, ok := metadata["author"]; ok {
		switch v := author.(type) {
		case string:
			authorName = v
		case map[string]any:
			if n, ok := asString(v["name"]); ok {
				authorName = n
			}
		}
	} else if info, ok := asMap(metadata["info"]); ok {
		if n, ok := asString(info["author"]); ok {
			authorName = n
		}
	}

	verified := false
	if maintainers, ok := metadata["maintainers"].([]any); ok && len(maintainers) > 1 {
		verified = true
	}
	if publisher, ok := asMap(metadata["publisher"]); ok {
		if t, ok := asString(publisher["type"]); ok && t == "organization" {
			verified = true
		}
	}

	switch {
	case verified:
		return 1.0
	case authorName != "":
		return 0.8
	default:
		return 0.3
	}
}

// maintenanceScore scores recency of the last publish. npm exposes
// time.modified; PyPI's latest release upload_time across the releases
// map serves as the equivalent signal.
func maintenanceScore(metadata map[string]any) float64 {
	lastUpdate, ok := extractLastUpdateDate(metadata)
	if !ok {
		return 0.5
	}
	t, ok := parseTime(lastUpdate)
	if !ok {
		return 0.5
	}
	return byMaintenanceDays(daysSince(t))
}

func extractLastUpdateDate(metadata map[string]any) (string, bool) {
	if timeField, ok := asMap(metadata["time"]); ok {
		if modified, ok := asString(timeField["modified"]); ok {
			return modified, true
		}
	}
	if releases, ok := asMap(metadata["releases"]); ok {
		latest := ""
		for _, v := range releases {
			entries, ok := v.([]any)
			if !ok || len(entries) == 0 {
				continue
			}
			entry, ok := asMap(entries[0])
			if !ok {
				continue
			}
			uploaded, ok := asString(entry["upload_time"])
			if !ok {
				continue
			}
			if uploaded > latest {
				latest = uploaded
			}
		}
		if latest != "" {
			return latest, true
		}
	}
	return "", false
}

func byMaintenanceDays(days float64) float64 {
	switch {
	case days > 730:
		return 0.2
	case days > 365:
		return 0.5
	case days > 180:
		return 0.7
	default:
		return 1.0
	}
}
