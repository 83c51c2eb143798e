package kernel

import (
	"fmt"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/memoria"
)

const (
	SleepBloqueante   = "BLOQUEANTE"
	SleepEsperaActiva = "ESPERA_ACTIVA"
)

// Config reúne los límites fijos del núcleo. Cambiarlos no toca ningún algoritmo.
type Config struct {
	memoria.Layout
	CantidadProcesos int    `json:"CANTIDAD_PROCESOS"` // Ranuras de la tabla, la 0 nunca se usa
	HZ               int    `json:"HZ"`                // Frecuencia del timer
	ModoSleep        string `json:"MODO_SLEEP"`
}

// ConfigPorDefecto devuelve los valores clásicos de WeensyOS
func ConfigPorDefecto() Config {
	return Config{
		Layout:           memoria.LayoutPorDefecto(),
		CantidadProcesos: 16,
		HZ:               100,
		ModoSleep:        SleepBloqueante,
	}
}

// CompletarConDefectos reemplaza los campos vacíos por los valores por defecto
func (c Config) CompletarConDefectos() Config {
	d := ConfigPorDefecto()
	c.Layout = c.Layout.CompletarConDefectos()
	if c.CantidadProcesos == 0 {
		c.CantidadProcesos = d.CantidadProcesos
	}
	if c.HZ == 0 {
		c.HZ = d.HZ
	}
	c.ModoSleep = strings.ToUpper(strings.TrimSpace(c.ModoSleep))
	if c.ModoSleep == "" {
		c.ModoSleep = d.ModoSleep
	}
	return c
}

// Validar comprueba la configuración completa
func (c Config) Validar() error {
	if err := c.Layout.Validar(); err != nil {
		return err
	}
	if c.CantidadProcesos < 2 {
		return fmt.Errorf("CANTIDAD_PROCESOS debe ser al menos 2: %d", c.CantidadProcesos)
	}
	if c.HZ <= 0 {
		return fmt.Errorf("HZ debe ser positivo: %d", c.HZ)
	}
	if c.ModoSleep != SleepBloqueante && c.ModoSleep != SleepEsperaActiva {
		return fmt.Errorf("MODO_SLEEP desconocido: %q", c.ModoSleep)
	}
	return nil
}
