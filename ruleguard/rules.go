// Package gorules holds project lint rules for gocritic's ruleguard checker.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// Missing rows come back wrapped, so compare with errors.Is.
func noRowsComparison(m dsl.Matcher) {
	m.Match(`$err == sql.ErrNoRows`, `sql.ErrNoRows == $err`).
		Report(`use errors.Is($err, sql.ErrNoRows); services wrap their errors`).
		Suggest(`errors.Is($err, sql.ErrNoRows)`)

	m.Match(`$err != sql.ErrNoRows`, `sql.ErrNoRows != $err`).
		Report(`use !errors.Is($err, sql.ErrNoRows); services wrap their errors`).
		Suggest(`!errors.Is($err, sql.ErrNoRows)`)
}

// Handler responses go through writeJSON so the Content-Type is always set.
func handlerJSON(m dsl.Matcher) {
	m.Match(`json.NewEncoder($w).Encode($v)`).
		Where(m.File().PkgPath.Matches(`internal/api/handlers$`) && !m.File().Name.Matches(`^helpers\.go$`)).
		Report(`use writeJSON($w, status, $v)`)
}

// Services take a context so request cancellation reaches the database.
func queriesWithoutContext(m dsl.Matcher) {
	m.Import("github.com/sersweai/leadcrm/internal/infra/database")

	m.Match(`$db.Exec($*_)`, `$db.Query($*_)`, `$db.QueryRow($*_)`).
		Where(m["db"].Type.Is("*database.DB") || m["db"].Type.Is("*database.Tx")).
		Report(`use the Context variant so cancellation propagates`)
}

// Errors wrap their cause with %w.
func errorWrapping(m dsl.Matcher) {
	m.Match(`fmt.Errorf($f, $*_, $err)`).
		Where(m["f"].Text.Matches(`%v"$`) && m["err"].Type.Is("error")).
		Report(`wrap $err with %w instead of %v`)
}

// Handlers answer with writeError so every failure body is {"error": msg}.
func handlerErrors(m dsl.Matcher) {
	m.Match(`http.Error($w, $msg, $code)`).
		Where(m.File().PkgPath.Matches(`internal/api/handlers$`)).
		Report(`use writeError($w, $code, $msg)`).
		Suggest(`writeError($w, $code, $msg)`)
}

// Logging goes through zap.
func stdLogging(m dsl.Matcher) {
	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`, `log.Fatalf($*_)`, `log.Fatal($*_)`).
		Where(m.File().Imports("log")).
		Report(`log through the injected *zap.Logger`)
}
