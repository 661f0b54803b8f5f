// Package database, SQLite bağlantısını ve migration sistemini yönetir.
//
// Go'da database/sql standart kütüphanesi, farklı veritabanlarına ortak bir
// arayüz (interface) sağlar. SQLite driver import edildiğinde otomatik
// olarak kayıt olur — "blank import" (_ "modernc.org/sqlite") bu yüzden
// kullanılır: import'un yan etkisi (side effect) gereklidir.
package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver — CGO gerekmez, her platformda çalışır
)

// DB, veritabanı bağlantısını saran struct.
// *sql.DB Go'nun built-in connection pool'udur — thread-safe'dir,
// birden fazla goroutine aynı anda güvenle kullanabilir.
type DB struct {
	Conn *sql.DB
}

// New, yeni bir SQLite bağlantısı oluşturur ve migration'ları çalıştırır.
//
// dbPath: SQLite dosya yolu (ör: "./data/koza.db")
// migrationsFS: Migration SQL dosyalarını içeren fs.FS (embed.FS veya os.DirFS olabilir)
func New(dbPath string, migrationsFS fs.FS) (*DB, error) {
	// Veritabanı dosyasının bulunduğu dizini oluştur (yoksa)
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// "_pragma=foreign_keys(1)" → FK constraint'leri aktif et (SQLite'ta varsayılan kapalı!)
	// "_pragma=journal_mode(WAL)" → Write-Ahead Logging: eşzamanlı okuma/yazma performansı
	// "_pragma=busy_timeout(5000)" → kilitli DB'ye rastlayan yazar 5 sn bekler
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn}

	if err := db.runMigrations(migrationsFS); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("[database] connected and migrations applied")
	return db, nil
}

// Close, veritabanı bağlantısını kapatır.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// migrationFile, numaralı bir migration dosyasını temsil eder.
// Dosya adı formatı: 0001_init.sql → version=1, name="init".
type migrationFile struct {
	version  int
	name     string
	filename string
}

// runMigrations, migrations/ dizinindeki SQL dosyalarını versiyon sırasıyla
// çalıştırır.
//
// Takip: migrations tablosu (version PRIMARY KEY) hangi versiyonların
// uygulandığını tutar. Her migration dosyası TEK transaction içinde çalışır —
// dosyadaki tüm statement'lar ve version kaydı ya birlikte commit olur ya da
// birlikte geri alınır. Yarım kalmış migration diye bir durum yoktur; bu
// yüzden "duplicate column" tarzı hataları tolere etmeye de gerek kalmaz.
func (db *DB) runMigrations(migrationsFS fs.FS) error {
	if _, err := db.Conn.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := listMigrationFiles(migrationsFS)
	if err != nil {
		return err
	}

	// Halihazırda uygulanmış versiyonları oku
	applied := make(map[int]bool)
	rows, err := db.Conn.Query("SELECT version FROM migrations")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate migration rows: %w", err)
	}

	for _, mf := range files {
		if applied[mf.version] {
			continue
		}

		// fs.ReadFile: embed.FS'ten veya disk FS'ten okur — path separator gerekmez.
		content, err := fs.ReadFile(migrationsFS, mf.filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", mf.filename, err)
		}

		if err := db.applyMigration(mf, string(content)); err != nil {
			return err
		}

		log.Printf("[database] migration applied: %s", mf.filename)
	}

	return nil
}

// applyMigration, tek bir migration dosyasını transaction içinde çalıştırır.
// Statement'lar noktalı virgülle ayrılır; version kaydı aynı transaction'a
// dahildir, böylece "çalıştı ama kaydedilmedi" durumu oluşamaz.
func (db *DB) applyMigration(mf migrationFile, content string) error {
	tx, err := db.Conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", mf.filename, err)
	}

	for i, stmt := range splitStatements(content) {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %s (statement %d): %w", mf.filename, i+1, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO migrations (version, name) VALUES (?, ?)", mf.version, mf.name,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", mf.filename, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", mf.filename, err)
	}
	return nil
}

// listMigrationFiles, dizindeki .sql dosyalarını versiyon sırasına dizer.
// Geçersiz adlı (numara öneksiz) dosya hata sayılır — sessizce atlanırsa
// şema eksik kurulur ve bunun teşhisi çok daha pahalıdır.
func listMigrationFiles(migrationsFS fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []migrationFile
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		mf, err := parseMigrationName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[mf.version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", mf.version, prev, mf.filename)
		}
		seen[mf.version] = mf.filename
		files = append(files, mf)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// parseMigrationName, "0001_init.sql" → {1, "init"} dönüşümünü yapar.
func parseMigrationName(filename string) (migrationFile, error) {
	base := strings.TrimSuffix(filename, ".sql")
	idx := strings.Index(base, "_")
	if idx <= 0 {
		return migrationFile{}, fmt.Errorf("migration %s: expected NNNN_name.sql format", filename)
	}

	version, err := strconv.Atoi(base[:idx])
	if err != nil || version <= 0 {
		return migrationFile{}, fmt.Errorf("migration %s: invalid version prefix", filename)
	}

	return migrationFile{version: version, name: base[idx+1:], filename: filename}, nil
}

// splitStatements, SQL metnini statement'lara böler.
// Noktalı virgül (;) ile ayırır ama string literal'lerin (tek tırnak),
// -- satır yorumlarının ve /* */ blok yorumlarının içindeki noktalı
// virgülleri yoksayar — yorum metninde ; geçmesi statement'ı bölmemeli.
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	inLineComment := false
	inBlockComment := false

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		switch {
		case inLineComment:
			if ch == '\n' {
				inLineComment = false
			}
			current.WriteByte(ch)
			continue
		case inBlockComment:
			if ch == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				current.WriteString("*/")
				i++
				inBlockComment = false
				continue
			}
			current.WriteByte(ch)
			continue
		}

		if !inString {
			if ch == '-' && i+1 < len(sql) && sql[i+1] == '-' {
				inLineComment = true
				current.WriteString("--")
				i++
				continue
			}
			if ch == '/' && i+1 < len(sql) && sql[i+1] == '*' {
				inBlockComment = true
				current.WriteString("/*")
				i++
				continue
			}
		}

		if ch == '\'' {
			// String literal toggle — '' (escape) handle et
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteByte(ch)
				current.WriteByte(sql[i+1])
				i++
				continue
			}
			inString = !inString
		}

		if ch == ';' && !inString {
			s := strings.TrimSpace(current.String())
			if containsSQL(s) {
				statements = append(statements, s)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	// Son statement (noktalı virgülsüz bitmiş olabilir)
	s := strings.TrimSpace(current.String())
	if containsSQL(s) {
		statements = append(statements, s)
	}

	return statements
}

// containsSQL, fragment'ın yorum ve boşluk dışında içerik taşıyıp
// taşımadığını döner. Dosya sonunda kalan salt-yorum parçası Exec'e
// gönderilmemeli.
func containsSQL(s string) bool {
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r':
			continue
		case s[i] == '-' && i+1 < len(s) && s[i+1] == '-':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return false
			}
			i += nl
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += 2 + end + 1
		default:
			return true
		}
	}
	return false
}
