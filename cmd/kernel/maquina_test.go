package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/kernel"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

func escribirPrograma(t *testing.T, dir, nombre string) string {
	t.Helper()
	prog := map[string]interface{}{
		"nombre":  nombre,
		"entrada": 0x100000,
		"segmentos": []map[string]interface{}{
			{"va": 0x100000, "tamanio": 0x1000, "datos": base64.StdEncoding.EncodeToString([]byte{0x90})},
			{"va": 0x101000, "tamanio": 0x1000, "datos": base64.StdEncoding.EncodeToString([]byte{0x41}), "escribible": true},
		},
	}
	contenido, err := json.Marshal(prog)
	if err != nil {
		t.Fatal(err)
	}
	ruta := filepath.Join(dir, nombre+".json")
	if err := os.WriteFile(ruta, contenido, 0644); err != nil {
		t.Fatal(err)
	}
	return ruta
}

// nuevoServidor arma la máquina con dos programas y devuelve un cliente contra ella
func nuevoServidor(t *testing.T) (*Maquina, *utils.HTTPClient, string) {
	t.Helper()
	dir := t.TempDir()
	config := &KernelConfig{
		Programas: []string{escribirPrograma(t, dir, "a"), escribirPrograma(t, dir, "b")},
		DumpPath:  filepath.Join(dir, "dumps"),
	}
	if err := config.completar(); err != nil {
		t.Fatal(err)
	}

	m, err := armarMaquina(config)
	if err != nil {
		t.Fatalf("armarMaquina() error = %v", err)
	}
	modulo := utils.NuevoModulo("Kernel", "")
	registrarHandlers(modulo, m, config.DumpPath)
	srv := httptest.NewServer(modulo.CrearServidor("127.0.0.1", 0).Handler())
	t.Cleanup(srv.Close)

	return m, utils.NewHTTPClientURL(srv.URL, "CPU"), config.DumpPath
}

func enviar(t *testing.T, c *utils.HTTPClient, tipo int, operacion string, datos interface{}) map[string]interface{} {
	t.Helper()
	respuesta, err := c.EnviarHTTPMensaje(tipo, operacion, datos)
	if err != nil {
		t.Fatalf("EnviarHTTPMensaje(%d, %s) error = %v", tipo, operacion, err)
	}
	return respuesta
}

func esperarDecision(t *testing.T, r map[string]interface{}, decision string, pid int) {
	t.Helper()
	if r["decision"] != decision {
		t.Fatalf("respuesta = %v, se esperaba %s", r, decision)
	}
	if pid != 0 && r["pid"] != float64(pid) {
		t.Fatalf("respuesta = %v, se esperaba pid %d", r, pid)
	}
}

func TestCompletarConfig(t *testing.T) {
	c := &KernelConfig{}
	if err := c.completar(); err != nil {
		t.Fatalf("completar() error = %v", err)
	}
	if c.IPKernel != "127.0.0.1" || c.PortKernel != 8001 || c.HZ != 100 || c.DumpPath != "dumps" {
		t.Errorf("config = %+v", c)
	}

	c = &KernelConfig{Programas: make([]string, 16)}
	if err := c.completar(); err == nil {
		t.Error("completar() aceptó más programas que ranuras")
	}
}

func TestSyscallsPorHTTP(t *testing.T) {
	m, cpu, _ := nuevoServidor(t)

	if r := enviar(t, cpu, utils.MensajeSyscall, utils.OperacionGetPID, nil); r["status"] != "ERROR" {
		t.Fatalf("syscall antes de arrancar = %v", r)
	}

	if d, err := m.Arrancar(); err != nil || d.PID != 1 {
		t.Fatalf("Arrancar() = %+v, %v", d, err)
	}

	r := enviar(t, cpu, utils.MensajeSyscall, utils.OperacionGetPID, nil)
	esperarDecision(t, r, "REANUDAR", 1)
	if r["retorno"] != float64(1) {
		t.Errorf("getpid = %v", r["retorno"])
	}

	r = enviar(t, cpu, utils.MensajeSyscall, "", map[string]interface{}{"numero": kernel.SyscallPageAlloc, "arg": "0x80000"})
	esperarDecision(t, r, "REANUDAR", 1)
	if r["retorno"] != float64(-1) {
		t.Errorf("page_alloc en el kernel = %v, se esperaba -1", r["retorno"])
	}

	r = enviar(t, cpu, utils.MensajeSyscall, utils.OperacionFork, nil)
	esperarDecision(t, r, "REANUDAR", 1)
	if r["retorno"] != float64(3) {
		t.Errorf("fork = %v, se esperaba 3", r["retorno"])
	}

	r = enviar(t, cpu, utils.MensajeSyscall, utils.OperacionYield, nil)
	esperarDecision(t, r, "REANUDAR", 2)

	r = enviar(t, cpu, utils.MensajeSyscall, utils.OperacionExit, nil)
	esperarDecision(t, r, "REANUDAR", 3)
	if _, ok := r["retorno"]; ok {
		t.Errorf("exit no debe devolver retorno: %v", r)
	}

	r = enviar(t, cpu, utils.MensajeEstado, "", nil)
	if r["auditoria"] != "OK" {
		t.Errorf("auditoría = %v", r["auditoria"])
	}
	if procesos, _ := r["procesos"].([]interface{}); len(procesos) != 2 {
		t.Errorf("procesos = %v", r["procesos"])
	}
}

func TestAccesoMemoriaPorHTTP(t *testing.T) {
	m, cpu, _ := nuevoServidor(t)
	if _, err := m.Arrancar(); err != nil {
		t.Fatal(err)
	}

	r := enviar(t, cpu, utils.MensajeAccesoMemoria, "", map[string]interface{}{"va": 0x101000})
	esperarDecision(t, r, "REANUDAR", 1)
	if r["valor"] != float64(0x41) {
		t.Errorf("valor leído = %v", r["valor"])
	}

	r = enviar(t, cpu, utils.MensajeAccesoMemoria, "", map[string]interface{}{"va": 0x100000, "escritura": true, "valor": 1})
	esperarDecision(t, r, "REANUDAR", 2)

	r = enviar(t, cpu, utils.MensajeAccesoMemoria, "", map[string]interface{}{"va": 0x101000, "valor": 300})
	if r["status"] != "ERROR" {
		t.Errorf("valor fuera de rango = %v", r)
	}
}

func TestPanicoPorHTTP(t *testing.T) {
	m, cpu, _ := nuevoServidor(t)
	if _, err := m.Arrancar(); err != nil {
		t.Fatal(err)
	}

	r := enviar(t, cpu, utils.MensajeSyscall, utils.OperacionPanic, nil)
	esperarDecision(t, r, "PANICO", 0)
	select {
	case <-m.Fin():
	default:
		t.Fatal("la máquina no terminó después del pánico")
	}
	if !m.Panico() {
		t.Error("Panico() = false")
	}
}

func TestMemoryDumpPorHTTP(t *testing.T) {
	m, cpu, dir := nuevoServidor(t)
	if r := enviar(t, cpu, utils.MensajeMemoryDump, "", nil); r["status"] != "ERROR" {
		t.Errorf("dump sin proceso = %v", r)
	}
	if _, err := m.Arrancar(); err != nil {
		t.Fatal(err)
	}

	r := enviar(t, cpu, utils.MensajeMemoryDump, "", nil)
	if r["status"] != "OK" {
		t.Fatalf("dump = %v", r)
	}
	archivo, _ := r["archivo"].(string)
	if filepath.Dir(archivo) != dir {
		t.Errorf("archivo = %s", archivo)
	}

	if r := enviar(t, cpu, utils.MensajeMemoryDump, "", map[string]interface{}{"pid": 9}); r["status"] != "PID_INVALIDO" {
		t.Errorf("dump de ranura libre = %v", r)
	}
}

func TestTimerYParada(t *testing.T) {
	m, cpu, _ := nuevoServidor(t)
	if _, err := m.Arrancar(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Timer(ctx, 1000)

	limite := time.After(5 * time.Second)
	for m.acks.Load() < 3 {
		select {
		case <-limite:
			t.Fatal("el timer no generó interrupciones")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	m.Detener()
	select {
	case <-m.Fin():
	case <-limite:
		t.Fatal("la máquina no se detuvo")
	}
	if m.Panico() {
		t.Error("una parada no es un pánico")
	}

	r := enviar(t, cpu, utils.MensajeInterrupcion, "", nil)
	if r["decision"] != "DETENER" {
		t.Errorf("interrupción después de detener = %v", r)
	}
}
