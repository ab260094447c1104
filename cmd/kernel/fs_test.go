package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanhpk/randstr"
)

func TestArchivoIdaYVuelta(t *testing.T) {
	fs, err := nuevoSistemaArchivos(t.TempDir())
	require.NoError(t, err)

	datos := randstr.Bytes(4096)

	archivo, err := fs.Crear("9_2.swp")
	require.NoError(t, err)
	_, err = archivo.EscribirEn(datos, 0)
	require.NoError(t, err)

	leido := make([]byte, 4096)
	_, err = archivo.LeerEn(leido, 0)
	require.NoError(t, err)
	assert.Equal(t, datos, leido)

	assert.True(t, fs.Existe("9_2.swp"))
	assert.Equal(t, []string{"9_2.swp"}, fs.Listar())

	require.NoError(t, fs.Eliminar("9_2.swp"))
	assert.False(t, fs.Existe("9_2.swp"))

	archivo.Cerrar()
}

func TestArchivoReferencias(t *testing.T) {
	fs, err := nuevoSistemaArchivos(t.TempDir())
	require.NoError(t, err)

	archivo, err := fs.Crear("1_0.swp")
	require.NoError(t, err)

	copia := archivo.Dup()
	assert.Equal(t, 2, archivo.Referencias())

	archivo.Cerrar()
	assert.Equal(t, 1, copia.Referencias())

	// La última referencia cierra el archivo de verdad
	_, err = copia.EscribirEn([]byte("x"), 0)
	assert.NoError(t, err)
	copia.Cerrar()
	assert.Equal(t, 0, copia.Referencias())
}

func TestAbrirInexistenteFalla(t *testing.T) {
	fs, err := nuevoSistemaArchivos(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Abrir("99_99.swp", false)
	assert.Error(t, err)
}

func TestInodoReferencias(t *testing.T) {
	inodo := nuevoInodo("/")
	copia := inodo.Dup()
	assert.Same(t, inodo, copia)
	inodo.Soltar()
	copia.Soltar()
}

func TestHistorialDescartaLoViejo(t *testing.T) {
	var h historialConsola
	for i := 0; i < MaxHistorial+4; i++ {
		h.Registrar(string(rune('a' + i)))
	}
	primero, codigo := h.Comando(0)
	assert.Equal(t, 0, codigo)
	assert.Equal(t, "e", primero, "los comandos más viejos se descartan")

	_, codigo = h.Comando(MaxHistorial)
	assert.Equal(t, 2, codigo)
}
