package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
)

// AdoptedResponse is the pet's adoption flag after a toggle.
type AdoptedResponse struct {
	IsAdopted bool `json:"is_adopted"`
}

// FinishedResponse is the task's state after a toggle.
type FinishedResponse struct {
	IsFinished bool `json:"is_finished"`
}

// ClosedResponse is the vacancy's state after a toggle.
type ClosedResponse struct {
	IsClosed bool `json:"is_closed"`
}

//
// Pets
//

// ListShelterPets godoc
// @ID          listShelterPets
// @Summary     Pets of a shelter awaiting adoption
// @Tags        Pets
// @Produce     json
// @Param       id         path      string  true   "Shelter ID"
// @Param       page       query     int     false  "Page (1-based)"
// @Param       page_size  query     int     false  "Page size (max 100)"
// @Success     200  {object}  services.Page[domain.Pet]
// @Router      /shelters/{id}/pets [get]
func (h *Handlers) ListShelterPets(c *gin.Context) {
	page, err := h.pets.ListForShelter(c.Request.Context(), c.Param("id"), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ListPets godoc
// @ID          listPets
// @Summary     Pets awaiting adoption across approved shelters
// @Tags        Pets
// @Produce     json
// @Param       animal_type  query     string  false  "Animal type slug"
// @Param       search       query     string  false  "Substring of the pet name"
// @Param       page         query     int     false  "Page (1-based)"
// @Param       page_size    query     int     false  "Page size (max 100)"
// @Success     200  {object}  services.Page[domain.Pet]
// @Router      /pets [get]
func (h *Handlers) ListPets(c *gin.Context) {
	opts := filter.ParsePetOptions(c.Request.URL.Query())
	page, err := h.pets.List(c.Request.Context(), opts, pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// GetPet godoc
// @ID          getPet
// @Summary     Pet detail
// @Tags        Pets
// @Produce     json
// @Param       id   path      string  true  "Pet ID"
// @Success     200  {object}  domain.Pet
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /pets/{id} [get]
func (h *Handlers) GetPet(c *gin.Context) {
	p, err := h.pets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ListMyPets godoc
// @ID          listMyPets
// @Summary     Pets of the caller's shelter
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.Page[domain.Pet]
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /my-shelter/pets [get]
func (h *Handlers) ListMyPets(c *gin.Context) {
	page, err := h.pets.ListOwn(c.Request.Context(), actor(c), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// CreatePet godoc
// @ID          createPet
// @Summary     Add a pet to the caller's shelter
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.PetInput  true  "Pet"
// @Success     201   {object}  domain.Pet
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /my-shelter/pets [post]
func (h *Handlers) CreatePet(c *gin.Context) {
	var in services.PetInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.pets.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// UpdatePet godoc
// @ID          updatePet
// @Summary     Update a pet of the caller's shelter
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string            true  "Pet ID"
// @Param       body  body      services.PetInput  true  "Pet"
// @Success     200   {object}  domain.Pet
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /my-shelter/pets/{id} [patch]
func (h *Handlers) UpdatePet(c *gin.Context) {
	var in services.PetInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.pets.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// AdoptPet godoc
// @ID          adoptPet
// @Summary     Toggle a pet's adoption flag
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Pet ID"
// @Success     200  {object}  handlers.AdoptedResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /my-shelter/pets/{id}/adopt [post]
func (h *Handlers) AdoptPet(c *gin.Context) {
	v, err := h.pets.ToggleAdopted(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, AdoptedResponse{IsAdopted: v})
}

// DeletePet godoc
// @ID          deletePet
// @Summary     Remove a pet from the caller's shelter
// @Tags        My shelter
// @Security    BearerAuth
// @Param       id  path  string  true  "Pet ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /my-shelter/pets/{id} [delete]
func (h *Handlers) DeletePet(c *gin.Context) {
	if err := h.pets.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

//
// Tasks
//

// ListShelterTasks godoc
// @ID          listShelterTasks
// @Summary     Tasks of a shelter
// @Tags        Tasks
// @Produce     json
// @Param       id   path     string  true  "Shelter ID"
// @Success     200  {array}  domain.Task
// @Router      /shelters/{id}/tasks [get]
func (h *Handlers) ListShelterTasks(c *gin.Context) {
	tasks, err := h.tasks.ListForShelter(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, tasks)
}

// ListMyTasks godoc
// @ID          listMyTasks
// @Summary     Tasks of the caller's shelter
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Success     200  {array}  domain.Task
// @Router      /my-shelter/tasks [get]
func (h *Handlers) ListMyTasks(c *gin.Context) {
	tasks, err := h.tasks.ListOwn(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, tasks)
}

// CreateTask godoc
// @ID          createTask
// @Summary     Add a task
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.TaskInput  true  "Task"
// @Success     201   {object}  domain.Task
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /my-shelter/tasks [post]
func (h *Handlers) CreateTask(c *gin.Context) {
	var in services.TaskInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.tasks.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, t)
}

// UpdateTask godoc
// @ID          updateTask
// @Summary     Update a task
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string             true  "Task ID"
// @Param       body  body      services.TaskInput  true  "Task"
// @Success     200   {object}  domain.Task
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /my-shelter/tasks/{id} [patch]
func (h *Handlers) UpdateTask(c *gin.Context) {
	var in services.TaskInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.tasks.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// FinishTask godoc
// @ID          finishTask
// @Summary     Toggle a task's finished flag
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Task ID"
// @Success     200  {object}  handlers.FinishedResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /my-shelter/tasks/{id}/finish [post]
func (h *Handlers) FinishTask(c *gin.Context) {
	v, err := h.tasks.ToggleFinished(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, FinishedResponse{IsFinished: v})
}

// DeleteTask godoc
// @ID          deleteTask
// @Summary     Remove a task
// @Tags        My shelter
// @Security    BearerAuth
// @Param       id  path  string  true  "Task ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /my-shelter/tasks/{id} [delete]
func (h *Handlers) DeleteTask(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

//
// Vacancies
//

// ListVacancies godoc
// @ID          listVacancies
// @Summary     Open vacancies
// @Tags        Vacancies
// @Produce     json
// @Param       page       query     int  false  "Page (1-based)"
// @Param       page_size  query     int  false  "Page size (max 100)"
// @Success     200  {object}  services.Page[domain.Vacancy]
// @Router      /vacancies [get]
func (h *Handlers) ListVacancies(c *gin.Context) {
	page, err := h.vacancies.List(c.Request.Context(), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ListPlatformVacancies godoc
// @ID          listPlatformVacancies
// @Summary     Open vacancies of the platform itself
// @Tags        Vacancies
// @Produce     json
// @Success     200  {object}  services.Page[domain.Vacancy]
// @Router      /vacancies/platform [get]
func (h *Handlers) ListPlatformVacancies(c *gin.Context) {
	page, err := h.vacancies.Platform(c.Request.Context(), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ListShelterVacancies godoc
// @ID          listShelterVacancies
// @Summary     Open vacancies of a shelter
// @Tags        Vacancies
// @Produce     json
// @Param       id   path      string  true  "Shelter ID"
// @Success     200  {object}  services.Page[domain.Vacancy]
// @Router      /shelters/{id}/vacancies [get]
func (h *Handlers) ListShelterVacancies(c *gin.Context) {
	page, err := h.vacancies.ForShelter(c.Request.Context(), c.Param("id"), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// GetVacancy godoc
// @ID          getVacancy
// @Summary     Vacancy detail
// @Tags        Vacancies
// @Produce     json
// @Param       id   path      string  true  "Vacancy ID"
// @Success     200  {object}  domain.Vacancy
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /vacancies/{id} [get]
func (h *Handlers) GetVacancy(c *gin.Context) {
	v, err := h.vacancies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// CreatePlatformVacancy godoc
// @ID          createPlatformVacancy
// @Summary     Add a platform vacancy (staff)
// @Tags        Vacancies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.VacancyInput  true  "Vacancy"
// @Success     201   {object}  domain.Vacancy
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /vacancies [post]
func (h *Handlers) CreatePlatformVacancy(c *gin.Context) {
	var in services.VacancyInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.vacancies.CreatePlatform(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// UpdatePlatformVacancy godoc
// @ID          updatePlatformVacancy
// @Summary     Update a platform vacancy (staff)
// @Tags        Vacancies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "Vacancy ID"
// @Param       body  body      services.VacancyInput  true  "Vacancy"
// @Success     200   {object}  domain.Vacancy
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Router      /vacancies/{id} [patch]
func (h *Handlers) UpdatePlatformVacancy(c *gin.Context) {
	var in services.VacancyInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.vacancies.UpdatePlatform(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// DeletePlatformVacancy godoc
// @ID          deletePlatformVacancy
// @Summary     Remove a platform vacancy (staff)
// @Tags        Vacancies
// @Security    BearerAuth
// @Param       id  path  string  true  "Vacancy ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /vacancies/{id} [delete]
func (h *Handlers) DeletePlatformVacancy(c *gin.Context) {
	if err := h.vacancies.DeletePlatform(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// ToggleVacancyClosed godoc
// @ID          toggleVacancyClosed
// @Summary     Open or close a vacancy (staff)
// @Tags        Vacancies
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Vacancy ID"
// @Success     200  {object}  handlers.ClosedResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /vacancies/{id}/toggle-close [post]
func (h *Handlers) ToggleVacancyClosed(c *gin.Context) {
	v, err := h.vacancies.ToggleClosed(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ClosedResponse{IsClosed: v})
}

// ListMyVacancies godoc
// @ID          listMyVacancies
// @Summary     Vacancies of the caller's shelter
// @Tags        My shelter
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.Page[domain.Vacancy]
// @Router      /my-shelter/vacancies [get]
func (h *Handlers) ListMyVacancies(c *gin.Context) {
	page, err := h.vacancies.ListOwn(c.Request.Context(), actor(c), pageRequest(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// CreateMyVacancy godoc
// @ID          createMyVacancy
// @Summary     Add a vacancy to the caller's shelter
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.VacancyInput  true  "Vacancy"
// @Success     201   {object}  domain.Vacancy
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /my-shelter/vacancies [post]
func (h *Handlers) CreateMyVacancy(c *gin.Context) {
	var in services.VacancyInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.vacancies.CreateOwn(c.Request.Context(), actor(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, v)
}

// UpdateMyVacancy godoc
// @ID          updateMyVacancy
// @Summary     Update a vacancy of the caller's shelter
// @Tags        My shelter
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "Vacancy ID"
// @Param       body  body      services.VacancyInput  true  "Vacancy"
// @Success     200   {object}  domain.Vacancy
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /my-shelter/vacancies/{id} [patch]
func (h *Handlers) UpdateMyVacancy(c *gin.Context) {
	var in services.VacancyInput
	if !bindJSON(c, &in) {
		return
	}
	v, err := h.vacancies.UpdateOwn(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// DeleteMyVacancy godoc
// @ID          deleteMyVacancy
// @Summary     Remove a vacancy of the caller's shelter
// @Tags        My shelter
// @Security    BearerAuth
// @Param       id  path  string  true  "Vacancy ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /my-shelter/vacancies/{id} [delete]
func (h *Handlers) DeleteMyVacancy(c *gin.Context) {
	if err := h.vacancies.DeleteOwn(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}
