package services

import (
	"fmt"
	"strings"
	"time"

	"resplan/internal/errs"
	"resplan/internal/models"

	"gorm.io/gorm"
)

type ProjectView struct {
	ID             uint                    `json:"id"`
	Name           string                  `json:"name"`
	Description    string                  `json:"description"`
	TemplateID     *uint                   `json:"template_id"`
	ClientID       uint                    `json:"client_id"`
	Client         string                  `json:"client"`
	ManagerID      uint                    `json:"manager_id"`
	Manager        string                  `json:"manager"`
	StartDate      *time.Time              `json:"start_date"`
	EndDate        *time.Time              `json:"end_date"`
	StatusID       *uint                   `json:"status_id"`
	Status         string                  `json:"status"`
	IndustryID     *uint                   `json:"industry_id"`
	Industry       string                  `json:"industry"`
	ProfitCenterID *uint                   `json:"profit_center_id"`
	ProfitCenter   string                  `json:"profit_center"`
	Products       []models.ProductService `json:"products,omitempty"`
	Groups         []GroupView             `json:"groups,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

type GroupView struct {
	ID             uint        `json:"id"`
	ProductGroupID uint        `json:"product_group_id"`
	ProductGroup   string      `json:"product_group"`
	Order          int         `json:"order"`
	Phases         []PhaseView `json:"phases"`
}

type PhaseView struct {
	ID               uint   `json:"id"`
	ProductElementID *uint  `json:"product_element_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Order            int    `json:"order"`
	Online           bool   `json:"online"`
	DurationID       *uint  `json:"duration_id"`
	Duration         string `json:"duration"`
}

// Spec returns the GroupSpec that would rebuild this tree.
func (v *ProjectView) Spec() []GroupSpec {
	out := make([]GroupSpec, 0, len(v.Groups))
	for _, g := range v.Groups {
		spec := GroupSpec{ProductGroupID: g.ProductGroupID, Phases: make([]PhaseSpec, 0, len(g.Phases))}
		for _, ph := range g.Phases {
			spec.Phases = append(spec.Phases, PhaseSpec{
				Name:             ph.Name,
				Description:      ph.Description,
				DurationID:       ph.DurationID,
				Online:           ph.Online,
				ProductElementID: ph.ProductElementID,
			})
		}
		out = append(out, spec)
	}
	return out
}

func fieldPath(parts ...any) string {
	var b strings.Builder
	for _, p := range parts {
		switch v := p.(type) {
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// buildTree inserts groups and phases under projectID. Order is the slice
// position. Every referenced catalog row and duration must exist.
func buildTree(tx *gorm.DB, projectID uint, groups []GroupSpec) error {
	for gi, spec := range groups {
		if err := mustExist(tx, &models.ProductGroup{}, "product group", &spec.ProductGroupID); err != nil {
			return err
		}
		group := models.ProjectGroup{ProjectID: projectID, ProductGroupID: spec.ProductGroupID, Order: gi}
		if err := tx.Omit("Phases").Create(&group).Error; err != nil {
			return err
		}

		for pi, ph := range spec.Phases {
			name := trim(ph.Name)
			if name == "" {
				return errs.Validation(fieldPath("groups", gi, "phases", pi, "name"), "phase name is required")
			}
			if err := lookupRef(tx, ph.DurationID, models.DurationList, "duration"); err != nil {
				return err
			}
			if err := mustExist(tx, &models.ProductElement{}, "product element", ph.ProductElementID); err != nil {
				return err
			}
			phase := models.ProjectPhase{
				GroupID:          group.ID,
				ProductElementID: ph.ProductElementID,
				Name:             name,
				Description:      trim(ph.Description),
				Order:            pi,
				Online:           ph.Online,
				DurationID:       ph.DurationID,
			}
			if err := tx.Create(&phase).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteTree removes every group of the project and their phases.
func deleteTree(tx *gorm.DB, projectID uint) error {
	var groupIDs []uint
	if err := tx.Model(&models.ProjectGroup{}).Where("project_id = ?", projectID).Pluck("id", &groupIDs).Error; err != nil {
		return err
	}
	if len(groupIDs) == 0 {
		return nil
	}
	if err := tx.Where("group_id IN ?", groupIDs).Delete(&models.ProjectPhase{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", groupIDs).Delete(&models.ProjectGroup{}).Error
}

// statusLabel derives the display status; a project without a status item
// is in the implicit initial state.
func statusLabel(values map[uint]string, id *uint) string {
	if v := valueOf(values, id); v != "" {
		return v
	}
	return models.DefaultProjectStatus
}

// projectViews resolves lookups, client names, manager names and catalog
// group names for a batch of projects in a fixed number of queries.
func projectViews(tx *gorm.DB, projects []models.Project, withTree bool) ([]ProjectView, error) {
	var (
		lookupIDs  []*uint
		clientIDs  []uint
		managerIDs []uint
		groupIDs   []uint
	)
	for i := range projects {
		p := &projects[i]
		lookupIDs = append(lookupIDs, p.StatusID, p.IndustryID, p.ProfitCenterID)
		clientIDs = append(clientIDs, p.ClientID)
		managerIDs = append(managerIDs, p.ManagerID)
		for _, g := range p.Groups {
			groupIDs = append(groupIDs, g.ProductGroupID)
			for j := range g.Phases {
				lookupIDs = append(lookupIDs, g.Phases[j].DurationID)
			}
		}
	}

	values, err := lookupValues(tx, lookupIDs...)
	if err != nil {
		return nil, err
	}
	clients, err := namesByID(tx, &models.Client{}, "name", clientIDs)
	if err != nil {
		return nil, err
	}
	groupNames, err := namesByID(tx, &models.ProductGroup{}, "name", groupIDs)
	if err != nil {
		return nil, err
	}
	managers := make(map[uint]string, len(managerIDs))
	if len(managerIDs) > 0 {
		var users []models.User
		if err := tx.Where("id IN ?", managerIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for i := range users {
			managers[users[i].ID] = users[i].DisplayName()
		}
	}

	out := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		v := ProjectView{
			ID:             p.ID,
			Name:           p.Name,
			Description:    p.Description,
			TemplateID:     p.TemplateID,
			ClientID:       p.ClientID,
			Client:         clients[p.ClientID],
			ManagerID:      p.ManagerID,
			Manager:        managers[p.ManagerID],
			StartDate:      p.StartDate,
			EndDate:        p.EndDate,
			StatusID:       p.StatusID,
			Status:         statusLabel(values, p.StatusID),
			IndustryID:     p.IndustryID,
			Industry:       valueOf(values, p.IndustryID),
			ProfitCenterID: p.ProfitCenterID,
			ProfitCenter:   valueOf(values, p.ProfitCenterID),
			Products:       p.Products,
			CreatedAt:      p.CreatedAt,
			UpdatedAt:      p.UpdatedAt,
		}
		if withTree {
			v.Groups = make([]GroupView, 0, len(p.Groups))
			for _, g := range p.Groups {
				gv := GroupView{
					ID:             g.ID,
					ProductGroupID: g.ProductGroupID,
					ProductGroup:   groupNames[g.ProductGroupID],
					Order:          g.Order,
					Phases:         make([]PhaseView, 0, len(g.Phases)),
				}
				for _, ph := range g.Phases {
					gv.Phases = append(gv.Phases, PhaseView{
						ID:               ph.ID,
						ProductElementID: ph.ProductElementID,
						Name:             ph.Name,
						Description:      ph.Description,
						Order:            ph.Order,
						Online:           ph.Online,
						DurationID:       ph.DurationID,
						Duration:         valueOf(values, ph.DurationID),
					})
				}
				v.Groups = append(v.Groups, gv)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func namesByID(tx *gorm.DB, model any, column string, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID   uint
		Name string
	}
	if err := tx.Model(model).Select("id, "+column+" AS name").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.Name
	}
	return out, nil
}
