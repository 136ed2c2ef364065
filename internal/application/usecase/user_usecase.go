package usecase

import (
	"time"

	"github.com/tu-usuario/facturador-pro/internal/application/dto"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

// UserUseCase aplica reglas de negocio para la administración de usuarios.
type UserUseCase struct {
	repo repository.UserRepository
}

// NewUserUseCase construye el caso de uso con el puerto de persistencia.
func NewUserUseCase(repo repository.UserRepository) *UserUseCase {
	return &UserUseCase{repo: repo}
}

// GetByID obtiene un usuario por ID.
func (uc *UserUseCase) GetByID(id string) (*dto.UserResponse, error) {
	user, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return entityToUserResponse(user), nil
}

// ListByIssuer lista los usuarios del emisor con paginación.
func (uc *UserUseCase) ListByIssuer(issuerID string, page dto.PageRequest) ([]dto.UserResponse, error) {
	page.DefaultPage()
	list, err := uc.repo.ListByIssuer(issuerID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.UserResponse, 0, len(list))
	for _, u := range list {
		items = append(items, *entityToUserResponse(u))
	}
	return items, nil
}

// UpdateRole cambia el rol de un usuario. Solo roles conocidos.
func (uc *UserUseCase) UpdateRole(id, role string) (*dto.UserResponse, error) {
	switch role {
	case entity.RoleAdmin, entity.RoleOperador, entity.RoleAuditor:
	default:
		return nil, domain.ErrInvalidInput
	}
	user, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	user.Role = role
	user.UpdatedAt = time.Now()
	if err := uc.repo.Update(user); err != nil {
		return nil, err
	}
	return entityToUserResponse(user), nil
}

// Deactivate suspende la cuenta sin borrarla: el login queda bloqueado.
func (uc *UserUseCase) Deactivate(id string) error {
	user, err := uc.repo.GetByID(id)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}
	user.Status = "suspended"
	user.UpdatedAt = time.Now()
	return uc.repo.Update(user)
}

// Delete elimina el usuario definitivamente.
func (uc *UserUseCase) Delete(id string) error {
	return uc.repo.Delete(id)
}

func entityToUserResponse(u *entity.User) *dto.UserResponse {
	if u == nil {
		return nil
	}
	return &dto.UserResponse{
		ID:        u.ID,
		IssuerID:  u.IssuerID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
