package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fiddo/connect/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを連携情報込みで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var (
		mlID, mlToken, mlRefresh     sql.NullString
		mlExpiresAt                  sql.NullTime
		tnStoreID, tnUserID, tnToken sql.NullString
		tnTokenType, tnScope         sql.NullString
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at,
		        mercadolibre_id, mercadolibre_access_token, mercadolibre_refresh_token, mercadolibre_token_expires_at,
		        tiendanube_store_id, tiendanube_user_id, tiendanube_access_token, tiendanube_token_type, tiendanube_scope
		 FROM users WHERE id = $1`,
		id,
	).Scan(
		&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt,
		&mlID, &mlToken, &mlRefresh, &mlExpiresAt,
		&tnStoreID, &tnUserID, &tnToken, &tnTokenType, &tnScope,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	// 連携は必須フィールドが揃っている場合のみ「存在する」とみなす
	if mlID.Valid && mlToken.Valid && mlExpiresAt.Valid {
		user.MercadoLibre = &model.MercadoLibreLink{
			UserID:       mlID.String,
			AccessToken:  mlToken.String,
			RefreshToken: mlRefresh.String,
			ExpiresAt:    mlExpiresAt.Time,
		}
	}
	if tnStoreID.Valid && tnToken.Valid {
		user.TiendaNube = &model.TiendaNubeLink{
			StoreID:     tnStoreID.String,
			UserID:      tnUserID.String,
			AccessToken: tnToken.String,
			TokenType:   tnTokenType.String,
			Scope:       tnScope.String,
		}
	}

	return user, nil
}

// FindTiendaNubeLink は指定ユーザーのTienda Nube連携情報のみを取得する。
// 未連携の場合はnilを返す。
func (r *PostgresUserRepo) FindTiendaNubeLink(ctx context.Context, userID string) (*model.TiendaNubeLink, error) {
	var storeID, tnUserID, token, tokenType, scope sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT tiendanube_store_id, tiendanube_user_id, tiendanube_access_token, tiendanube_token_type, tiendanube_scope
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&storeID, &tnUserID, &token, &tokenType, &scope)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tiendanube link: %w", err)
	}

	if !storeID.Valid || !token.Valid {
		return nil, nil
	}

	return &model.TiendaNubeLink{
		StoreID:     storeID.String,
		UserID:      tnUserID.String,
		AccessToken: token.String,
		TokenType:   tokenType.String,
		Scope:       scope.String,
	}, nil
}

// SetMercadoLibreLink はMercadoLibre連携の全フィールドを1回のUPDATEで書き込む。
func (r *PostgresUserRepo) SetMercadoLibreLink(ctx context.Context, userID string, link *model.MercadoLibreLink) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET mercadolibre_id = $2,
		     mercadolibre_access_token = $3,
		     mercadolibre_refresh_token = $4,
		     mercadolibre_token_expires_at = $5,
		     updated_at = now()
		 WHERE id = $1`,
		userID, link.UserID, link.AccessToken, nullString(link.RefreshToken), link.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set mercadolibre link: %w", err)
	}
	return checkRowUpdated(result)
}

// SetTiendaNubeLink はTienda Nube連携の全フィールドを1回のUPDATEで書き込む。
func (r *PostgresUserRepo) SetTiendaNubeLink(ctx context.Context, userID string, link *model.TiendaNubeLink) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET tiendanube_store_id = $2,
		     tiendanube_user_id = $3,
		     tiendanube_access_token = $4,
		     tiendanube_token_type = $5,
		     tiendanube_scope = $6,
		     updated_at = now()
		 WHERE id = $1`,
		userID, link.StoreID, nullString(link.UserID), link.AccessToken,
		nullString(link.TokenType), nullString(link.Scope),
	)
	if err != nil {
		return fmt.Errorf("failed to set tiendanube link: %w", err)
	}
	return checkRowUpdated(result)
}

// ClearLink は指定プロバイダーの連携カラムをすべて1回のUPDATEでNULLにする。
// すでに未連携の場合も成功として扱う（冪等）。
func (r *PostgresUserRepo) ClearLink(ctx context.Context, userID string, kind model.ProviderKind) error {
	var query string
	switch kind {
	case model.ProviderMercadoLibre:
		query = `UPDATE users
		         SET mercadolibre_id = NULL,
		             mercadolibre_access_token = NULL,
		             mercadolibre_refresh_token = NULL,
		             mercadolibre_token_expires_at = NULL,
		             updated_at = now()
		         WHERE id = $1`
	case model.ProviderTiendaNube:
		query = `UPDATE users
		         SET tiendanube_store_id = NULL,
		             tiendanube_user_id = NULL,
		             tiendanube_access_token = NULL,
		             tiendanube_token_type = NULL,
		             tiendanube_scope = NULL,
		             updated_at = now()
		         WHERE id = $1`
	default:
		return fmt.Errorf("unknown provider kind: %s", kind)
	}

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to clear %s link: %w", kind, err)
	}
	return checkRowUpdated(result)
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// checkRowUpdated はUPDATEが対象行に当たったことを検証する。
// 0行の場合はユーザーが存在しない。
func checkRowUpdated(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// nullString は空文字列をNULLとして書き込むためのヘルパー。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
