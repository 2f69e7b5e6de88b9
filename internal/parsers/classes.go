package parsers

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/Benny93/contexter-go/internal/graph"
)

// Specificity of a match within its kind. A literal naming the endpoint
// beats a recognizable call site that does not.
const (
	specCall    = 0
	specDriver  = 1
	specLiteral = 2
)

// Construct is one classified match on one line.
type Construct struct {
	Kind graph.EdgeKind

	// Target is the external name for http/db/queue, or the raw module
	// reference for imports.
	Target string

	Line        int
	StartCol    int
	EndCol      int
	Specificity int

	// Import is set for import constructs.
	Import *ImportStatement
}

func (c Construct) overlaps(o Construct) bool {
	return c.Line == o.Line && c.StartCol < o.EndCol && o.StartCol < c.EndCol
}

// classMatcher recognizes one construct class. Group 1, when present and
// matched, marks the span used for tie-breaking and target building;
// otherwise the whole match is used.
type classMatcher struct {
	kind        graph.EdgeKind
	specificity int
	re          *regexp.Regexp
	toLineEnd   bool
	target      func(line string, m []int) string
}

var (
	httpURLRe    = regexp.MustCompile("https?://[^\\s'\"`<>(){}\\[\\]\\\\]+")
	dbURLRe      = regexp.MustCompile("\\b(?:postgres(?:ql)?|mysql|mariadb|mongodb(?:\\+srv)?|rediss?|sqlite3?|sqlserver|mssql|clickhouse|cockroachdb|oracle)://[^\\s'\"`<>]*")
	queueURLRe   = regexp.MustCompile("\\b(?:amqps?|kafka|nats|mqtts?|stomp|pulsar|sqs)://[^\\s'\"`<>]*")
	sqlDriverRe  = regexp.MustCompile(`\bsqlx?\.(?:Open|Connect|MustConnect|MustOpen)\s*\(\s*"([\w-]+)"`)
	pyDriverRe   = regexp.MustCompile(`\b(sqlite3|psycopg2?|pymysql|MySQLdb|asyncpg|aiosqlite|pymongo|redis)\.(?:connect|MongoClient|Redis|StrictRedis|create_pool)\s*\(`)
	jsDriverRe   = regexp.MustCompile(`\b(?:new\s+(MongoClient|Sequelize|PrismaClient)\s*\(|(mongoose)\.connect\s*\(|(mysql2?)\.(?:createPool|createConnection)\s*\()`)
	sqlCallRe    = regexp.MustCompile("\\.(?:execute|executemany|exec|query|raw|Exec|ExecContext|Query|QueryContext|QueryRow|QueryRowContext|Raw|Select|Get)\\s*\\(\\s*(?:ctx\\s*,\\s*|context\\.\\w+\\(\\)\\s*,\\s*)?[rfbu]?[\"'`]\\s*(?i:select|insert|update|delete|create|drop|alter|with|replace|upsert|merge)\\b")
	sqlTableRe   = regexp.MustCompile("(?i)\\b(?:from|into|update|join|table)\\s+[\"'`\\[]?([A-Za-z_][\\w.]*)")
	queueCallRe  = regexp.MustCompile(`\b(?:publish|publish_message|basic_publish|subscribe|enqueue|produce|send_message|sendMessage|send_task|Publish|PublishMsg|Subscribe|QueueSubscribe|Produce|Enqueue|(?:producer|publisher|kafka_producer)\.send)\s*\(\s*(?:ctx\s*,\s*)?(?:(?:topic|queue|subject|routing_key|channel)\s*[=:]\s*)?["']([\w\-:./]+)["']`)
	httpCallRe   = regexp.MustCompile(`\b(?:requests|httpx|aiohttp|axios|urllib\.request|http|got|superagent)\.(?:get|post|put|patch|delete|head|options|request|urlopen|Get|Post|PostForm|Head|NewRequest|NewRequestWithContext)\s*\(`)
	fetchCallRe  = regexp.MustCompile(`(?:^|[^\w.$])(fetch)\s*\(`)
	urlTrailTrim = ".,;:!?$'\""
)

var classMatchers = []classMatcher{
	{kind: graph.KindDB, specificity: specLiteral, re: dbURLRe, target: func(line string, m []int) string {
		return "db:" + normalizeEndpoint(line[m[0]:m[1]])
	}},
	{kind: graph.KindDB, specificity: specDriver, re: sqlDriverRe, toLineEnd: true, target: func(line string, m []int) string {
		return "db:" + line[m[2]:m[3]]
	}},
	{kind: graph.KindDB, specificity: specDriver, re: pyDriverRe, toLineEnd: true, target: func(line string, m []int) string {
		return "db:" + line[m[2]:m[3]]
	}},
	{kind: graph.KindDB, specificity: specDriver, re: jsDriverRe, toLineEnd: true, target: func(line string, m []int) string {
		for g := 2; g+1 < len(m); g += 2 {
			if m[g] >= 0 {
				return "db:" + strings.ToLower(line[m[g]:m[g+1]])
			}
		}
		return "db:<unknown>"
	}},
	{kind: graph.KindDB, specificity: specCall, re: sqlCallRe, toLineEnd: true, target: func(line string, m []int) string {
		if t := sqlTableRe.FindStringSubmatch(line[m[0]:]); t != nil {
			return "db:" + t[1]
		}
		return "db:<query>"
	}},
	{kind: graph.KindQueue, specificity: specLiteral, re: queueURLRe, target: func(line string, m []int) string {
		return "queue:" + normalizeEndpoint(line[m[0]:m[1]])
	}},
	{kind: graph.KindQueue, specificity: specCall, re: queueCallRe, target: func(line string, m []int) string {
		return "queue:" + line[m[2]:m[3]]
	}},
	{kind: graph.KindHTTP, specificity: specLiteral, re: httpURLRe, target: func(line string, m []int) string {
		return normalizeURL(line[m[0]:m[1]])
	}},
	{kind: graph.KindHTTP, specificity: specCall, re: httpCallRe, toLineEnd: true, target: func(string, []int) string {
		return "http:<dynamic>"
	}},
	{kind: graph.KindHTTP, specificity: specCall, re: fetchCallRe, toLineEnd: true, target: func(string, []int) string {
		return "http:<dynamic>"
	}},
}

// scanLine returns every http/db/queue candidate on one line.
func scanLine(line string, lineNum int, kinds map[graph.EdgeKind]bool) []Construct {
	var out []Construct
	for _, cm := range classMatchers {
		if !kinds[cm.kind] {
			continue
		}
		for _, m := range cm.re.FindAllStringSubmatchIndex(line, -1) {
			start, end := m[0], m[1]
			if cm.re == fetchCallRe {
				start = m[2]
			}
			if cm.specificity == specLiteral {
				end = start + len(strings.TrimRight(line[start:end], urlTrailTrim))
			}
			if cm.toLineEnd {
				end = len(line)
			}
			if end <= start {
				continue
			}
			trimmed := append([]int{start, end}, m[2:]...)
			out = append(out, Construct{
				Kind:        cm.kind,
				Target:      cm.target(line, trimmed),
				Line:        lineNum,
				StartCol:    start,
				EndCol:      end,
				Specificity: cm.specificity,
			})
		}
	}
	return out
}

// resolveOverlaps keeps, per line, the most specific construct for every
// contested span: higher kind priority first, then higher specificity,
// then leftmost. A candidate overlapping an accepted one is dropped.
func resolveOverlaps(candidates []Construct) []Construct {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Kind.Priority() != b.Kind.Priority() {
			return a.Kind.Priority() > b.Kind.Priority()
		}
		if a.Specificity != b.Specificity {
			return a.Specificity > b.Specificity
		}
		return a.StartCol < b.StartCol
	})

	var accepted []Construct
	lineStart := 0
	for _, c := range candidates {
		for lineStart < len(accepted) && accepted[lineStart].Line != c.Line {
			lineStart++
		}
		clash := false
		for _, a := range accepted[lineStart:] {
			if a.overlaps(c) {
				clash = true
				break
			}
		}
		if !clash {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

// normalizeURL strips query, fragment and credentials from an http URL.
func normalizeURL(raw string) string {
	raw = strings.TrimRight(raw, urlTrailTrim)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// normalizeEndpoint renders scheme://host/path of a connection string
// without credentials or options.
func normalizeEndpoint(raw string) string {
	raw = strings.TrimRight(raw, urlTrailTrim)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	host, p, _ := strings.Cut(rest, "/")
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	out := strings.ToLower(scheme) + "://" + strings.ToLower(host)
	if p = strings.TrimRight(p, "/"); p != "" {
		out += "/" + p
	}
	return out
}
