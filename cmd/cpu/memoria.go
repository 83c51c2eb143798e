package main

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// leerDeMemoria lee un byte de la dirección virtual del proceso en la CPU
func (c *CPU) leerDeMemoria(direccion string) (map[string]interface{}, error) {
	va, err := parsearNumero(direccion)
	if err != nil {
		return nil, err
	}

	respuesta, err := c.kernel.EnviarHTTPMensaje(utils.MensajeAccesoMemoria, "READ", map[string]interface{}{"va": va})
	if err != nil {
		return nil, fmt.Errorf("error al leer %#x: %w", va, err)
	}
	if valor, ok := respuesta["valor"]; ok {
		utils.InfoLog.Info(fmt.Sprintf("PID: %d - Acción: LEER - Dirección Virtual: %#x - Valor: %v", c.pid, va, valor))
	}
	return respuesta, nil
}

// escribirEnMemoria escribe un byte en la dirección virtual del proceso en la CPU
func (c *CPU) escribirEnMemoria(direccion, dato string) (map[string]interface{}, error) {
	va, err := parsearNumero(direccion)
	if err != nil {
		return nil, err
	}
	valor, err := parsearNumero(dato)
	if err != nil {
		return nil, err
	}
	if valor > 0xFF {
		return nil, fmt.Errorf("el valor %d no entra en un byte", valor)
	}

	respuesta, err := c.kernel.EnviarHTTPMensaje(utils.MensajeAccesoMemoria, "WRITE",
		map[string]interface{}{"va": va, "escritura": true, "valor": valor})
	if err != nil {
		return nil, fmt.Errorf("error al escribir %#x: %w", va, err)
	}
	if respuesta["decision"] == "REANUDAR" && respuesta["status"] == "OK" {
		utils.InfoLog.Info(fmt.Sprintf("PID: %d - Acción: ESCRIBIR - Dirección Virtual: %#x - Valor: %d", c.pid, va, valor))
	}
	return respuesta, nil
}
