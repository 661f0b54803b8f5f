// Package main — Repository katmanı başlatma.
//
// initRepositories, tüm repository implementasyonlarını oluşturur.
// Her repository bir SQL.DB bağlantısı alır ve interface döner.
// main.go'daki wire-up'ı modülerleştirmek için bu dosyaya taşındı.
package main

import (
	"database/sql"

	"github.com/akinalp/koza/repository"
)

// Repositories, tüm repository instance'larını tutan container struct.
//
// Neden struct? On ayrı repository değişkeni yerine tek struct kullanmak:
// 1. Fonksiyon imzalarını temiz tutar (tek parametre yerine on parametre)
// 2. Yeni repository eklendiğinde sadece struct + initRepositories güncellenir
// 3. IDE auto-complete ile kolay erişim (repos.User, repos.Channel, vb.)
type Repositories struct {
	User              repository.UserRepository
	Server            repository.ServerRepository
	Channel           repository.ChannelRepository
	Member            repository.MemberRepository
	Role              repository.RoleRepository
	ChannelPermission repository.ChannelPermissionRepository
	Credential        repository.CredentialRepository
	Invite            repository.InviteRepository
	Ban               repository.BanRepository
	Message           repository.MessageRepository
}

// initRepositories, veritabanı bağlantısından tüm repository'leri oluşturur.
//
// Her NewSQLite* fonksiyonu aynı *sql.DB'yi alır — Go'nun sql.DB'si
// thread-safe connection pool'dur, paylaşılması güvenlidir.
func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		User:              repository.NewSQLiteUserRepo(conn),
		Server:            repository.NewSQLiteServerRepo(conn),
		Channel:           repository.NewSQLiteChannelRepo(conn),
		Member:            repository.NewSQLiteMemberRepo(conn),
		Role:              repository.NewSQLiteRoleRepo(conn),
		ChannelPermission: repository.NewSQLiteChannelPermissionRepo(conn),
		Credential:        repository.NewSQLiteCredentialRepo(conn),
		Invite:            repository.NewSQLiteInviteRepo(conn),
		Ban:               repository.NewSQLiteBanRepo(conn),
		Message:           repository.NewSQLiteMessageRepo(conn),
	}
}
